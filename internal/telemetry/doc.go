// Package telemetry is the append-only log of device observations.
//
// Records are never updated or deleted by the core. Each record gets a
// server-assigned timestamp at append time, forced strictly past the newest
// stored timestamp for its device, and an insertion sequence (the row id).
// Readers page through a device's log with a Cursor, which orders records by
// (timestamp, sequence).
package telemetry
