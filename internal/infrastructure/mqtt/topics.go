package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants for the SmartLight MQTT namespace.
//
// Device topics follow the scheme the lamps themselves speak:
//
//	Devices/{token}/status   - published by the device (state + connectivity)
//	Devices/{token}/command  - published by the core (plain text ON/OFF/DEL)
//
// System topics carry the core's own lifecycle status.
const (
	// TopicPrefixDevices is the base for all device topics.
	TopicPrefixDevices = "Devices"

	// TopicPrefixSystem is the base for core system topics.
	TopicPrefixSystem = "smartlight/system"

	// deviceTopicParts is the number of segments in a device topic.
	deviceTopicParts = 3
)

// Topics provides builders for SmartLight MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceStatus returns the status topic for a single device.
//
// Example: Devices/abc123/status
func (Topics) DeviceStatus(token string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevices, token)
}

// DeviceCommand returns the command topic for a single device.
//
// Example: Devices/abc123/command
func (Topics) DeviceCommand(token string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixDevices, token)
}

// AllDeviceStatus returns a pattern matching every device's status topic.
//
// Pattern: Devices/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevices)
}

// SystemStatus returns the core's system status topic.
//
// Example: smartlight/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// TokenFromStatusTopic extracts the device token from a status topic.
// Returns false when the topic does not match Devices/{token}/status or
// the token segment is empty.
func TokenFromStatusTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != deviceTopicParts {
		return "", false
	}
	if parts[0] != TopicPrefixDevices || parts[2] != "status" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
