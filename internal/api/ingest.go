package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/roomwatch-core/internal/ingest"
)

// ingestRequest is the device submission body. api_key and metric_type are
// accepted as aliases for firmware that predates the current field names.
type ingestRequest struct {
	DeviceID   string          `json:"device_id"`
	Credential string          `json:"credential"`
	APIKey     string          `json:"api_key"`
	MetricKind string          `json:"metric_kind"`
	MetricType string          `json:"metric_type"`
	Value      json.RawMessage `json:"value"`
	Payload    map[string]any  `json:"payload"`
}

func (req ingestRequest) submission() ingest.Submission {
	sub := ingest.Submission{
		DeviceID:   req.DeviceID,
		Credential: req.Credential,
		MetricKind: req.MetricKind,
		Value:      req.Value,
		Payload:    req.Payload,
	}
	if sub.Credential == "" {
		sub.Credential = req.APIKey
	}
	if sub.MetricKind == "" {
		sub.MetricKind = req.MetricType
	}
	return sub
}

// handleIngestTelemetry accepts one telemetry report from a device.
// Only an undecodable body is rejected as malformed; bad numeric fields
// degrade inside the gateway.
func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if _, err := s.gateway.Ingest(r.Context(), req.submission()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
