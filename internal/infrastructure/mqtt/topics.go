package mqtt

import (
	"fmt"
	"strings"
)

// DefaultBaseTopic is the topic root when none is configured.
const DefaultBaseTopic = "iot_room"

// Topic suffixes under {base}/devices/{id}/.
const (
	SuffixCommands  = "commands"
	SuffixTelemetry = "telemetry"
)

// Topics builds RoomWatch topics under a base prefix.
//
//	topics := mqtt.NewTopics("iot_room")
//	topics.DeviceCommand("lab-fan-01")
//	// Returns: "iot_room/devices/lab-fan-01/commands"
type Topics struct {
	base string
}

// NewTopics creates a builder rooted at base. Surrounding slashes are
// trimmed; an empty base uses DefaultBaseTopic.
func NewTopics(base string) Topics {
	base = strings.Trim(base, "/")
	if base == "" {
		base = DefaultBaseTopic
	}
	return Topics{base: base}
}

// Base returns the topic root.
func (t Topics) Base() string {
	return t.base
}

// DeviceCommand returns the topic a device consumes commands from.
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/%s", t.base, deviceID, SuffixCommands)
}

// DeviceTelemetry returns the topic a device publishes telemetry to.
func (t Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/%s", t.base, deviceID, SuffixTelemetry)
}

// AllDeviceTelemetry returns the wildcard matching every device's telemetry.
func (t Topics) AllDeviceTelemetry() string {
	return t.DeviceTelemetry("+")
}

// SystemStatus returns the retained server status topic.
func (t Topics) SystemStatus() string {
	return t.base + "/system/status"
}

// ParseDeviceTopic extracts the device ID and suffix from a topic of the
// form {base}/devices/{id}/{suffix}. ok is false for any other shape.
func (t Topics) ParseDeviceTopic(topic string) (deviceID, suffix string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.base+"/devices/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
