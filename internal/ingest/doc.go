// Package ingest authenticates device telemetry and reconciles derived state.
//
// Every submission is handled in one database transaction:
//
//  1. Authenticate the device by id and credential. The device must be active.
//  2. Append exactly one telemetry record with a server-assigned timestamp.
//  3. If the device sits in a room, make sure the room and its status exist.
//  4. Apply the reconciliation rule for the metric kind, if there is one.
//
// Either all of it commits or none of it does. Device-reported numbers never
// cause a rejection: a headcount that is not an integer becomes 0, and a
// malformed state value is ignored.
package ingest
