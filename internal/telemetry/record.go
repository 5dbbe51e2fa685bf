package telemetry

import "time"

// Well-known metric kinds. The set is open: any other kind is stored as is.
const (
	KindPeopleCount     = "people_count"
	KindRoomTemperature = "room_temperature"
	KindDeviceState     = "device_state"
)

// Query limits for Recent.
const (
	DefaultLimit = 300
	MinLimit     = 1
	MaxLimit     = 1000
)

// Record is one immutable observation reported by a device.
type Record struct {
	ID         int64          `json:"id"`
	DeviceID   string         `json:"device_id"`
	Timestamp  time.Time      `json:"timestamp"`
	MetricKind string         `json:"metric_kind"`
	Value      *float64       `json:"value"`
	Payload    map[string]any `json:"payload"`
}

// Cursor is a position in one device's log. The zero Cursor sits before
// every record.
type Cursor struct {
	Timestamp int64 `json:"ts"`  // unix nanoseconds
	Seq       int64 `json:"seq"` // record id
}

// Of returns the cursor positioned at r.
func Of(r Record) Cursor {
	return Cursor{Timestamp: r.Timestamp.UnixNano(), Seq: r.ID}
}

// Before reports whether c sorts strictly before other.
func (c Cursor) Before(other Cursor) bool {
	if c.Timestamp != other.Timestamp {
		return c.Timestamp < other.Timestamp
	}
	return c.Seq < other.Seq
}

// ClampLimit bounds a requested record count to MinLimit..MaxLimit.
func ClampLimit(n int) int {
	switch {
	case n < MinLimit:
		return MinLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
