// Package audit records and queries the audit trail of commands and
// operator sessions.
package audit

import "time"

// Actions recorded in the trail.
const (
	ActionCommand   = "command"
	ActionLogin     = "login"
	ActionLogout    = "logout"
	ActionProvision = "provision"
	ActionUpdate    = "update"
	ActionDelete    = "delete"
)

// Entity types.
const (
	EntityDevice  = "device"
	EntitySession = "session"
)

// Sources.
const (
	SourceAPI    = "api"
	SourceSystem = "system"
)

// Paging bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
