// Package api provides the HTTP REST API for RoomWatch Core.
//
// Routes live under /api/v1. Devices authenticate telemetry with their own
// credential in the request body; operators authenticate with a JWT bearer
// token obtained from /auth/login. Live telemetry is served as Server-Sent
// Events or over a websocket, each subscription polling the telemetry store
// with its own cursor.
//
// Errors use a single envelope:
//
//	{"error": {"code": "not_found", "message": "device not found"}}
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
