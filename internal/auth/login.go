package auth

import (
	"context"
	"errors"
)

// Authenticate checks an email and password against the stored account.
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
func Authenticate(ctx context.Context, users UserRepository, email, password string) (*User, error) {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable time so unknown emails are not distinguishable.
			_, _ = VerifyPassword(password, dummyHash) //nolint:errcheck // result unused
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// dummyHash is a valid Argon2id hash of a random string.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$c29tZXNhbHRzb21lc2FsdA$Hq4kHqk0i2x3XW2b3sCq4y9sYh0ZfKp6c1mZb3rJm3E"
