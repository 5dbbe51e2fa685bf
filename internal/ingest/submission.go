package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Submission is one telemetry report from a device.
//
// Value is kept as raw JSON so that a malformed number reaches the
// reconciliation rules instead of failing request decoding.
type Submission struct {
	DeviceID   string          `json:"device_id"`
	Credential string          `json:"credential"`
	MetricKind string          `json:"metric_kind"`
	Value      json.RawMessage `json:"value,omitempty"`
	Payload    map[string]any  `json:"payload,omitempty"`
}

// numericValue reads raw as a float. JSON numbers and numeric strings are
// accepted; anything else, including null and absence, yields nil.
func numericValue(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return finite(f)
		}
	}
	return nil
}

// headcount reads raw as a people count. Fractions are truncated and
// anything unparseable counts as zero.
func headcount(raw json.RawMessage) int {
	f := numericValue(raw)
	if f == nil {
		return 0
	}
	if *f > math.MaxInt32 || *f < math.MinInt32 {
		return 0
	}
	return int(*f)
}

// payloadNumber reads a numeric payload field. ok is false when the field is
// absent or not a number.
func payloadNumber(payload map[string]any, key string) (float64, bool) {
	v, present := payload[key]
	if !present {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// payloadBool reads a boolean payload field. Numbers are true when non-zero
// and strings must parse with strconv.ParseBool. ok is false otherwise.
func payloadBool(payload map[string]any, key string) (bool, bool) {
	v, present := payload[key]
	if !present {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
