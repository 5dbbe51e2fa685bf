package presence

import "errors"

var (
	// ErrPresenceNotFound is returned when a user has never logged in or out.
	ErrPresenceNotFound = errors.New("presence: not found")

	// ErrUserRequired is returned when an operation is called without a user ID.
	ErrUserRequired = errors.New("presence: user id required")
)
