package telemetry

import "errors"

var (
	// ErrInvalidRecord is returned when a record lacks a device id or metric kind.
	ErrInvalidRecord = errors.New("telemetry: invalid record")
)
