package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/roomwatch-core/internal/auth"
	"github.com/nerrad567/roomwatch-core/internal/command"
	"github.com/nerrad567/roomwatch-core/internal/device"
	"github.com/nerrad567/roomwatch-core/internal/ingest"
	"github.com/nerrad567/roomwatch-core/internal/location"
	"github.com/nerrad567/roomwatch-core/internal/presence"
)

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeValidation     = "validation_error"
	ErrCodeBusUnavailable = "bus_unavailable"
	ErrCodeInternal       = "internal_error"
)

// ErrorBody is the inner object of the error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// mapping from domain errors to responses, first match wins.
var errorMappings = []struct {
	target  error
	status  int
	code    string
	message string
}{
	{ingest.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid device credential"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password"},
	{auth.ErrUserInactive, http.StatusUnauthorized, ErrCodeUnauthorized, "account disabled"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token"},
	{auth.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "not permitted"},
	{device.ErrDeviceNotFound, http.StatusNotFound, ErrCodeNotFound, "device not found"},
	{location.ErrRoomNotFound, http.StatusNotFound, ErrCodeNotFound, "room not found"},
	{presence.ErrPresenceNotFound, http.StatusNotFound, ErrCodeNotFound, "no presence recorded"},
	{auth.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, "user not found"},
	{command.ErrBusUnavailable, http.StatusServiceUnavailable, ErrCodeBusUnavailable, "message bus unavailable"},
	{device.ErrDeviceExists, http.StatusConflict, ErrCodeConflict, "device already exists"},
	{device.ErrCredentialExists, http.StatusConflict, ErrCodeConflict, "credential already in use"},
	{ingest.ErrMissingMetricKind, http.StatusBadRequest, ErrCodeBadRequest, "metric_kind is required"},
	{command.ErrInvalidCommand, http.StatusBadRequest, ErrCodeBadRequest, "command_kind is required"},
	{device.ErrOwnerNotFound, http.StatusBadRequest, ErrCodeValidation, "owner not found"},
}

// writeDomainError maps err to its HTTP status and code. Errors without a
// mapping are logged and reported as internal errors.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, m.message)
			return
		}
	}
	if isValidationError(err) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	)
	writeInternalError(w, "internal error")
}

func isValidationError(err error) bool {
	for _, target := range []error{
		device.ErrInvalidDevice, device.ErrInvalidKind, device.ErrInvalidName,
		location.ErrInvalidName, location.ErrInvalidRoomID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
