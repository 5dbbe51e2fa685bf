package bridge

import "errors"

var (
	// ErrMalformedMessage is returned for payloads that are not a JSON object.
	ErrMalformedMessage = errors.New("bridge: malformed telemetry message")

	// ErrNoDeviceID is returned when neither payload nor topic names a device.
	ErrNoDeviceID = errors.New("bridge: cannot determine device_id")

	// ErrNoCredential is returned when the message carries no credential.
	ErrNoCredential = errors.New("bridge: missing credential")
)
