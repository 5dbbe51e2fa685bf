package location

import (
	"fmt"
	"time"
)

// Room is a physical space devices and people are assigned to.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomStatus is the current reconciled view of a room.
//
// PeopleCount is the last headcount reported by a sensor in the room.
// Temperature stays nil until a sensor reports one, and may be reset to nil
// by a report without a value. Humidity defaults to 0.
type RoomStatus struct {
	RoomID      int64     `json:"room_id"`
	PeopleCount int       `json:"people_count"`
	Temperature *float64  `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultRoomName is the name given to a lazily created room.
func DefaultRoomName(id int64) string {
	return fmt.Sprintf("Room %d", id)
}
