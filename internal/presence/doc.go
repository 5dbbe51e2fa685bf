// Package presence tracks per-day attendance and live online status.
//
// Logging in records a check-in for the current day and marks the user
// online; logging out records a check-out and marks them offline.
//
// Per user and day the state moves NoRecord -> CheckedIn -> CheckedOut.
// Check-in is set once per day: a later login leaves it untouched.
// Check-out is overwritten by every logout, so after several sessions the
// row holds the first check-in and the last check-out. A logout with no
// login that day still creates a row with check-out only.
//
// Room occupancy is derived at read time: it counts today's rows with a
// check-in and no check-out whose user's position maps to the room through
// a RoomMapper.
//
// "Today" is the calendar day in the site time zone.
package presence
