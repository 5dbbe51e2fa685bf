package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/roomwatch-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device-authenticated: the credential travels in the body.
		r.Post("/ingest/telemetry", s.handleIngestTelemetry)

		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)

			r.Route("/devices", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermDeviceRead)).Get("/", s.handleListDevices)
				r.With(s.requirePermission(auth.PermDeviceProvision)).Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermDeviceRead))
					r.Get("/telemetry", s.handleRecentTelemetry)
					r.Get("/telemetry/stream", s.handleTelemetryStream)
					r.Get("/telemetry/ws", s.handleTelemetryWebSocket)
					r.With(s.requirePermission(auth.PermDeviceCommand)).Post("/commands", s.handleSendCommand)
					r.With(s.requirePermission(auth.PermDeviceProvision)).Put("/active", s.handleSetDeviceActive)
					r.With(s.requirePermission(auth.PermDeviceProvision)).Delete("/", s.handleDeleteDevice)
				})
			})

			r.Route("/rooms", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermRoomRead))
				r.Get("/", s.handleListRooms)
				r.Get("/{id}/status", s.handleRoomStatus)
			})

			r.Get("/attendance/me/today", s.handleAttendanceToday)
			r.Get("/attendance/me", s.handleAttendanceHistory)
			r.Get("/presence/me", s.handlePresence)

			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
