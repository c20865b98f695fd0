package registry

import "errors"

var (
	// ErrHomeNotFound is returned when no home matches the given ID.
	ErrHomeNotFound = errors.New("home not found")

	// ErrRoomNotFound is returned when no room matches the given ID.
	ErrRoomNotFound = errors.New("room not found")

	// ErrDeviceNotFound is returned when no device matches the given ID
	// or token.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrScheduleNotFound is returned when no schedule matches the given ID.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrDuplicateName is returned when a create or rename collides with
	// an existing unique name (home name, device name, room name within
	// a home).
	ErrDuplicateName = errors.New("name already in use")

	// ErrDuplicateToken is returned when a device is created with a token
	// already registered to another device.
	ErrDuplicateToken = errors.New("token already registered")

	// ErrHomeHasRooms is returned when deleting a home that still
	// contains rooms.
	ErrHomeHasRooms = errors.New("home still has rooms")

	// ErrRoomHasDevices is returned when deleting a room that still
	// contains devices.
	ErrRoomHasDevices = errors.New("room still has devices")
)
