package bridge

import "errors"

var (
	// ErrMalformedPayload is returned when a device status payload is
	// empty or syntactically invalid JSON. Logged and skipped.
	ErrMalformedPayload = errors.New("malformed status payload")

	// ErrUnknownDevice is returned when no registered device carries the
	// token. Dropped on ingress, surfaced to callers on dispatch.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnauthorized is returned when the dispatching user has no
	// access to the device. Authorization failures fail closed.
	ErrUnauthorized = errors.New("not authorized for device")

	// ErrInvalidPayload is returned when a command payload cannot be
	// normalized to ON, OFF or DEL. No side effect occurs.
	ErrInvalidPayload = errors.New("invalid command payload")

	// ErrConfirmationTimeout is returned when the device did not report
	// the desired state within the confirmation window. The optimistic
	// state is retained.
	ErrConfirmationTimeout = errors.New("device confirmation timed out")

	// ErrTransportUnhealthy is returned by HealthCheck when the MQTT
	// connection has been down past the reconnect policy.
	ErrTransportUnhealthy = errors.New("mqtt transport unhealthy")
)
