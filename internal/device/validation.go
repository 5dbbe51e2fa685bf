package device

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	maxNameLength       = 100
	minCredentialLength = 8
	credentialBytes     = 24
)

// Device IDs end up as MQTT topic levels, so '/', '+' and '#' are excluded.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

var validKinds = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		m[k] = struct{}{}
	}
	return m
}()

// ValidateDevice checks a device before it is persisted.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if err := ValidateKind(d.Kind); err != nil {
		return err
	}
	if len(d.Credential) < minCredentialLength {
		return fmt.Errorf("%w: credential must be at least %d characters", ErrInvalidDevice, minCredentialLength)
	}
	if d.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDevice)
	}
	if d.RoomID != nil && *d.RoomID <= 0 {
		return fmt.Errorf("%w: room id must be positive", ErrInvalidDevice)
	}
	return nil
}

// ValidateID checks that an ID is usable as a topic level.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id %q must be 1-64 characters of letters, digits, '_', '.', ':' or '-'", ErrInvalidDevice, id)
	}
	return nil
}

// ValidateKind checks that the kind is light, fan or ac.
func ValidateKind(k Kind) error {
	if _, ok := validKinds[k]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, k)
	}
	return nil
}

// GenerateCredential returns a random hex credential for a new device.
func GenerateCredential() (string, error) {
	b := make([]byte, credentialBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating device credential: %w", err)
	}
	return hex.EncodeToString(b), nil
}
