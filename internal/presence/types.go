package presence

import "time"

// DayLayout is the storage and wire format of an attendance day.
const DayLayout = "2006-01-02"

// Attendance is one user's check-in and check-out for a calendar day.
type Attendance struct {
	UserID   string     `json:"user_id"`
	Day      string     `json:"date"`
	CheckIn  *time.Time `json:"check_in"`
	CheckOut *time.Time `json:"check_out"`
}

// Present reports whether the user is checked in and not yet checked out.
func (a *Attendance) Present() bool {
	return a.CheckIn != nil && a.CheckOut == nil
}

// Presence is a user's current online state.
type Presence struct {
	UserID   string    `json:"user_id"`
	RoomID   *int64    `json:"room_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// History bounds, in days.
const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 366
)

// ClampDays bounds a requested history window to 1..MaxHistoryDays.
func ClampDays(days int) int {
	switch {
	case days < 1:
		return 1
	case days > MaxHistoryDays:
		return MaxHistoryDays
	default:
		return days
	}
}
