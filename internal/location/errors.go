package location

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned when a room ID or name is already taken.
	ErrRoomExists = errors.New("room already exists")

	// ErrInvalidName is returned when a room name is empty or too long.
	ErrInvalidName = errors.New("invalid room name")

	// ErrInvalidRoomID is returned for non-positive room IDs.
	ErrInvalidRoomID = errors.New("invalid room id")
)
