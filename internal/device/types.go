package device

import (
	"crypto/subtle"
	"time"
)

// Kind is the closed set of device classes the system knows how to drive.
// The meaning of Device.Value depends on it: intensity for lights, speed
// for fans, setpoint for air conditioners.
type Kind string

const (
	KindLight Kind = "light"
	KindFan   Kind = "fan"
	KindAC    Kind = "ac"
)

// AllKinds returns every valid Kind.
func AllKinds() []Kind {
	return []Kind{KindLight, KindFan, KindAC}
}

// Device is a provisioned IoT device.
//
// IsOn and Value are the last state the device itself reported. They are
// written only by telemetry ingestion, never by an operator command.
type Device struct {
	ID         string   `json:"device_id"`
	Name       string   `json:"name"`
	Credential string   `json:"-"` // never serialised
	OwnerID    string   `json:"owner_id"`
	RoomID     *int64   `json:"room_id,omitempty"`
	Kind       Kind     `json:"device_type"`
	PosX       *float64 `json:"pos_x,omitempty"`
	PosY       *float64 `json:"pos_y,omitempty"`
	IsActive   bool     `json:"is_active"`

	IsOn  bool     `json:"is_on"`
	Value *float64 `json:"value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy; pointer fields are cloned so the
// registry cache cannot be mutated through a returned value.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.RoomID = clonePtr(d.RoomID)
	cpy.PosX = clonePtr(d.PosX)
	cpy.PosY = clonePtr(d.PosY)
	cpy.Value = clonePtr(d.Value)
	return &cpy
}

// Accepts reports whether credential authenticates this device.
// Inactive devices never authenticate.
func (d *Device) Accepts(credential string) bool {
	if d == nil || !d.IsActive || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(d.Credential), []byte(credential)) == 1
}

// InRoom reports whether the device is assigned to roomID.
func (d *Device) InRoom(roomID int64) bool {
	return d.RoomID != nil && *d.RoomID == roomID
}

// ObservedState is a partial state report from a device. Nil fields are
// left unchanged.
type ObservedState struct {
	IsOn  *bool
	Value *float64
}

// IsEmpty reports whether the report carries no fields.
func (s ObservedState) IsEmpty() bool {
	return s.IsOn == nil && s.Value == nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
