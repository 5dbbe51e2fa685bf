package command

import "time"

// StatusQueued is the only receipt status: the broker accepted the message.
const StatusQueued = "queued"

// Command is an operator instruction addressed to one device.
type Command struct {
	DeviceID string         `json:"device_id"`
	Kind     string         `json:"command_kind"`
	Payload  map[string]any `json:"payload,omitempty"`

	// IssuedBy is the operator user ID, recorded in the audit trail only.
	IssuedBy string `json:"-"`
}

// Receipt acknowledges that a command was handed to the broker.
type Receipt struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

// message is the wire form published to the device's command topic.
type message struct {
	CommandID string         `json:"command_id"`
	DeviceID  string         `json:"device_id"`
	Kind      string         `json:"command_kind"`
	Payload   map[string]any `json:"payload"`
	IssuedAt  time.Time      `json:"issued_at"`
}
