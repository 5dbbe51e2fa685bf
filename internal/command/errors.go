package command

import "errors"

var (
	// ErrBusUnavailable is returned when no publish succeeded within the
	// configured number of attempts.
	ErrBusUnavailable = errors.New("command: message bus unavailable")

	// ErrInvalidCommand is returned when the device ID or command kind is empty.
	ErrInvalidCommand = errors.New("command: device_id and command_kind are required")
)
