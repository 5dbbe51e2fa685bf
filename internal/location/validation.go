package location

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

// ValidateName checks that a room name is non-empty and not too long.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateRoom checks a room before it is created.
func ValidateRoom(room *Room) error {
	if room.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRoomID, room.ID)
	}
	if err := ValidateName(room.Name); err != nil {
		return err
	}
	if room.Description != nil && utf8.RuneCountInString(*room.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidName, maxDescriptionLength)
	}
	return nil
}
