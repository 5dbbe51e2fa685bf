package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/roomwatch-core/internal/audit"
	"github.com/nerrad567/roomwatch-core/internal/auth"
	"github.com/nerrad567/roomwatch-core/internal/device"
)

// createDeviceRequest is the body of POST /devices.
type createDeviceRequest struct {
	DeviceID   string      `json:"device_id"`
	Name       string      `json:"name"`
	OwnerID    string      `json:"owner_id"`
	RoomID     *int64      `json:"room_id"`
	Kind       device.Kind `json:"device_type"`
	PosX       *float64    `json:"pos_x"`
	PosY       *float64    `json:"pos_y"`
	Credential string      `json:"credential"`
}

// handleListDevices returns every device for admins and the caller's own
// devices otherwise.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	var (
		devices []device.Device
		err     error
	)
	if auth.HasPermission(claims.Role, auth.PermDeviceReadAll) {
		devices, err = s.registry.ListDevices(ctx)
	} else {
		devices, err = s.registry.ListByOwner(ctx, claims.Subject)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleCreateDevice provisions a device. The credential is returned once,
// here, and never serialised again.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	claims := claimsFrom(ctx)
	if req.OwnerID == "" {
		req.OwnerID = claims.Subject
	}

	d := &device.Device{
		ID:         req.DeviceID,
		Name:       req.Name,
		Credential: req.Credential,
		OwnerID:    req.OwnerID,
		RoomID:     req.RoomID,
		Kind:       req.Kind,
		PosX:       req.PosX,
		PosY:       req.PosY,
		IsActive:   true,
	}
	if err := s.registry.CreateDevice(ctx, d); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(audit.ActionProvision, audit.EntityDevice, d.ID, claims.Subject, map[string]any{
		"owner_id":    d.OwnerID,
		"device_type": string(d.Kind),
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"device":     d,
		"credential": d.Credential,
	})
}

// setActiveRequest is the body of PUT /devices/{id}/active.
type setActiveRequest struct {
	Active *bool `json:"active"`
}

// handleSetDeviceActive enables or disables a device credential. An inactive
// device is refused at ingestion.
func (s *Server) handleSetDeviceActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Active == nil {
		writeBadRequest(w, "active is required")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := s.registry.SetActive(ctx, id, *req.Active); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	d, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(audit.ActionUpdate, audit.EntityDevice, id, claimsFrom(ctx).Subject, map[string]any{
		"is_active": *req.Active,
	})

	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device and its telemetry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteDevice(ctx, id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(audit.ActionDelete, audit.EntityDevice, id, claimsFrom(ctx).Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// authorizeDeviceRead loads the {id} device and checks the caller may read
// it. On failure the response has been written and ok is false.
func (s *Server) authorizeDeviceRead(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	d, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}

	claims := claimsFrom(r.Context())
	if !auth.CanReadDevice(claims.Role, claims.Subject, d.OwnerID) {
		writeForbidden(w, "device belongs to another owner")
		return nil, false
	}
	return d, true
}
