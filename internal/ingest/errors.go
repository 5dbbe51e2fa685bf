package ingest

import "errors"

var (
	// ErrUnauthorized is returned for an unknown device, a wrong credential
	// or an inactive device. Nothing is persisted.
	ErrUnauthorized = errors.New("ingest: unauthorized")

	// ErrMissingMetricKind is returned when a submission names no metric kind.
	ErrMissingMetricKind = errors.New("ingest: metric kind required")
)
