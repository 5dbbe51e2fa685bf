package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/roomwatch-core/internal/command"
)

// commandRequest is the body of POST /devices/{id}/commands.
// command_type is the older name of command_kind.
type commandRequest struct {
	Kind    string         `json:"command_kind"`
	Type    string         `json:"command_type"`
	Payload map[string]any `json:"payload"`
}

// handleSendCommand publishes a command to the device and answers 202 as
// soon as the broker accepts it. The device's reaction arrives later as
// telemetry.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Kind == "" {
		req.Kind = req.Type
	}

	if s.commands == nil {
		s.writeDomainError(w, r, command.ErrBusUnavailable)
		return
	}

	receipt, err := s.commands.Dispatch(r.Context(), command.Command{
		DeviceID: chi.URLParam(r, "id"),
		Kind:     req.Kind,
		Payload:  req.Payload,
		IssuedBy: claimsFrom(r.Context()).Subject,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, receipt)
}
