package bridge

import (
	"context"

	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// StatusMessage is the event shape broadcast to websocket sessions.
type StatusMessage struct {
	Device    string `json:"device"`
	Token     string `json:"token"`
	Status    bool   `json:"status"`
	Establish bool   `json:"establish"`
	Raw       string `json:"raw,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// messageForDevice builds the broadcast message for a device's current
// registry state.
func messageForDevice(dev *registry.Device, raw string) StatusMessage {
	return StatusMessage{
		Device:    dev.Name,
		Token:     dev.Token,
		Status:    dev.Status,
		Establish: dev.Connection,
		Raw:       raw,
	}
}

// Fanout pushes state changes to the live sessions of every user
// authorized for the device.
type Fanout struct {
	store  StateStore
	hub    Hub
	logger *logging.Logger
}

// NewFanout creates a fan-out publisher.
func NewFanout(store StateStore, hub Hub, logger *logging.Logger) *Fanout {
	return &Fanout{store: store, hub: hub, logger: logger}
}

// Publish resolves the device's authorized set from current registry
// state and delivers the message to each user's sessions.
func (f *Fanout) Publish(ctx context.Context, dev *registry.Device, msg StatusMessage) {
	users, err := f.store.AuthorizedUserIDs(ctx, dev.ID)
	if err != nil {
		f.logger.Error("resolving fan-out audience",
			"device", dev.Name, "token", dev.Token, "error", err)
		return
	}
	f.PublishTo(users, msg)
}

// PublishTo delivers the message to an already-resolved audience. The
// dispatcher uses this for deletion events, where the audience must be
// snapshotted before the device row disappears.
func (f *Fanout) PublishTo(userIDs []string, msg StatusMessage) {
	for _, userID := range userIDs {
		f.hub.SendToUser(userID, msg)
	}
}
