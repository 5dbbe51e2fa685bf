// Package location provides rooms and their materialised status.
//
// A Room is a named physical space. Its RoomStatus holds the current
// occupant count, temperature and humidity as last reconciled from
// telemetry. The status is a view, not a source of truth: it is created
// lazily, zeroed, on the first telemetry from a device in the room or on
// the first status read, and concurrent writers simply overwrite each other.
//
// Rooms themselves are also created lazily: EnsureRoom inserts a room with a
// placeholder name the first time a device or telemetry references it.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines.
// Bind it to a transaction with WithTx when the writes must commit together
// with other repositories.
package location
