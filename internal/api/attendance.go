package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/roomwatch-core/internal/presence"
)

// handleAttendanceToday returns the caller's attendance for today, or an
// empty row when they have not checked in.
func (s *Server) handleAttendanceToday(w http.ResponseWriter, r *http.Request) {
	att, err := s.presence.Today(r.Context(), claimsFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

// handleAttendanceHistory returns the caller's attendance for the last
// ?days= days (default 30, max 366), newest first.
func (s *Server) handleAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	days := presence.DefaultHistoryDays
	if n, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil {
		days = presence.ClampDays(n)
	}

	items, err := s.presence.History(r.Context(), claimsFrom(r.Context()).Subject, days)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []presence.Attendance{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handlePresence returns the caller's current online state.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	p, err := s.presence.GetPresence(r.Context(), claimsFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
