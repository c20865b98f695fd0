package registry

import "time"

// Home groups rooms under a single owner. SharedWith lists users granted
// access to every device in the home; it is populated by Get/List calls.
type Home struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OwnerID    string   `json:"owner_id"`
	SharedWith []string `json:"shared_with,omitempty"`
}

// Room is a named subdivision of a home. Room names are unique within
// their home but may repeat across homes.
type Room struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	HomeID string `json:"home_id"`
}

// Device is a registered lamp. Token is the stable hardware identifier
// embedded in MQTT topics; ID is the registry's own key. Status and
// Connection hold the last reconciled values, not a live reading.
type Device struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	Name       string    `json:"name"`
	Status     bool      `json:"status"`
	Connection bool      `json:"connection"`
	RoomID     string    `json:"room_id"`
	SharedWith []string  `json:"shared_with,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Schedule is a daily on/off timer for a device. OnTime and OffTime are
// wall-clock times in "HH:MM" form. The fired flags prevent a schedule
// from triggering twice in one day; they are cleared at midnight.
type Schedule struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	OnTime   string `json:"on_time"`
	OffTime  string `json:"off_time"`
	OnFired  bool   `json:"on_fired"`
	OffFired bool   `json:"off_fired"`
}

// UpdateOutcome reports what a conditional status or connection write
// actually did, so callers can decide whether fan-out is warranted.
type UpdateOutcome int

const (
	// OutcomeChanged means the stored value differed and was updated.
	OutcomeChanged UpdateOutcome = iota

	// OutcomeUnchanged means the stored value already matched; no write
	// happened and no fan-out is needed.
	OutcomeUnchanged

	// OutcomeUnknownDevice means no device carries the given token.
	OutcomeUnknownDevice
)

// String returns a stable label for logging.
func (o UpdateOutcome) String() string {
	switch o {
	case OutcomeChanged:
		return "changed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUnknownDevice:
		return "unknown_device"
	default:
		return "invalid"
	}
}
