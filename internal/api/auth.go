package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/audit"
	"github.com/nerrad567/roomwatch-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        *auth.User `json:"user"`
}

func (s *Server) tokenTTL() time.Duration {
	if s.secCfg.JWT.AccessTokenTTL <= 0 {
		return auth.DefaultTokenTTL
	}
	return time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
}

// handleLogin authenticates an operator, issues a JWT, records today's
// check-in and marks the user online in the room their position maps to.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	user, err := auth.Authenticate(ctx, s.users, req.Email, req.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	ttl := s.tokenTTL()
	token, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if _, err := s.presence.RecordCheckIn(ctx, user.ID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.presence.SetOnline(ctx, user.ID, s.presence.Mapper().MapPtr(user.Position)); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(audit.ActionLogin, audit.EntitySession, user.ID, user.ID, nil)

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(ttl.Seconds()),
		User:        user,
	})
}

// handleLogout records today's check-out and marks the caller offline.
// The token itself stays valid until it expires.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := claimsFrom(ctx).Subject

	if _, err := s.presence.RecordCheckOut(ctx, userID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.presence.SetOffline(ctx, userID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(audit.ActionLogout, audit.EntitySession, userID, userID, nil)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
