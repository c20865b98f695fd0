package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/infrastructure/mqtt"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// Result reports how a dispatch went for the caller.
type Result struct {
	// Device is the registry snapshot after the dispatch: the confirmed
	// state when confirmation succeeded, the optimistic state otherwise.
	Device *registry.Device

	// PublishFailed is the soft-success marker: the optimistic state was
	// applied and fanned out but the command never reached the broker.
	PublishFailed bool

	// Confirmed is set when the device reported the desired state inside
	// the confirmation window.
	Confirmed bool

	// Deleted is set for the DEL flow.
	Deleted bool
}

// Dispatcher validates and executes user commands against devices.
type Dispatcher struct {
	store        StateStore
	transport    Transport
	reconciler   *Reconciler
	fanout       *Fanout
	topics       mqtt.Topics
	confirmWait  time.Duration
	pollInterval time.Duration
	logger       *logging.Logger
}

// NewDispatcher creates a command dispatcher. Confirmation timing comes
// from the bridge section of the config.
func NewDispatcher(store StateStore, transport Transport, reconciler *Reconciler,
	fanout *Fanout, cfg config.BridgeConfig, logger *logging.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:        store,
		transport:    transport,
		reconciler:   reconciler,
		fanout:       fanout,
		confirmWait:  cfg.GetConfirmWindow(),
		pollInterval: cfg.GetConfirmPollInterval(),
		logger:       logger,
	}
}

// Dispatch executes a command for a user against the device with the
// given token.
//
// The device must exist and the user must be authorized before anything
// happens. The payload is normalized to ON/OFF (DEL triggers the
// deletion flow instead), published to the device's command topic, and
// the desired state is applied optimistically so sessions update
// immediately. With confirm set, Dispatch then waits up to the
// confirmation window for the device's own report to match, polling the
// registry; expiry returns ErrConfirmationTimeout with the optimistic
// state left in place. A command that asks for the state the device is
// already in confirms immediately without waiting.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, token, rawPayload string, confirm bool) (*Result, error) {
	dev, err := d.store.GetDeviceByToken(ctx, token)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			return nil, ErrUnknownDevice
		}
		return nil, fmt.Errorf("resolving device %s: %w", token, err)
	}

	allowed, err := d.store.CanAccess(ctx, dev.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("checking access for %s: %w", userID, err)
	}
	if !allowed {
		return nil, ErrUnauthorized
	}

	command, err := NormalizeCommand(rawPayload)
	if err != nil {
		return nil, err
	}

	if command == CommandDelete {
		return d.dispatchDelete(ctx, dev)
	}

	desired := command == CommandOn
	result := &Result{}

	// Snapshot the report sequence before publishing so only an echo
	// arriving after this command can confirm it.
	reportMark := d.reconciler.ReportSeq()

	if err := d.transport.PublishCommand(d.topics.DeviceCommand(token), command); err != nil {
		// The lamp may be offline or the broker briefly unreachable. The
		// optimistic state still goes out so the UI reflects intent.
		d.logger.Warn("command publish failed",
			"token", token, "command", command, "error", err)
		result.PublishFailed = true
	}

	if _, err := d.reconciler.ApplyDesired(ctx, token, desired, command); err != nil {
		return nil, err
	}

	if confirm && !result.PublishFailed {
		// A command asking for the state the device already held gives
		// the lamp nothing to change, so no echo will come. The
		// pre-dispatch state is the confirmation.
		if dev.Status != desired {
			confirmed, err := d.awaitConfirmation(ctx, token, reportMark, desired)
			if err != nil {
				return nil, err
			}
			result.Device = confirmed
			result.Confirmed = true
			return result, nil
		}
		result.Confirmed = true
	}

	snapshot, err := d.store.GetDeviceByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("reading device after dispatch: %w", err)
	}
	result.Device = snapshot
	return result, nil
}

// dispatchDelete handles the DEL sentinel: tell the device, then tell
// the users, then remove the row. The audience is snapshotted before
// deletion because it cannot be resolved afterwards.
func (d *Dispatcher) dispatchDelete(ctx context.Context, dev *registry.Device) (*Result, error) {
	audience, err := d.store.AuthorizedUserIDs(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshotting audience for %s: %w", dev.Token, err)
	}

	result := &Result{Deleted: true, Device: dev}
	if err := d.transport.PublishCommand(d.topics.DeviceCommand(dev.Token), CommandDelete); err != nil {
		d.logger.Warn("delete command publish failed", "token", dev.Token, "error", err)
		result.PublishFailed = true
	}

	msg := messageForDevice(dev, CommandDelete)
	msg.Deleted = true
	d.fanout.PublishTo(audience, msg)

	if err := d.store.DeleteDevice(ctx, dev.ID); err != nil {
		return nil, fmt.Errorf("deleting device %s: %w", dev.ID, err)
	}

	d.logger.Info("device deleted", "token", dev.Token, "name", dev.Name)
	return result, nil
}

// awaitConfirmation polls until the device itself has echoed the
// desired state after the sequence mark, or the window expires. The
// persisted status alone cannot serve here: the optimistic write
// already set it to the desired value, and confirmation means the lamp
// actually complied. Only the calling goroutine waits.
func (d *Dispatcher) awaitConfirmation(ctx context.Context, token string, mark uint64, desired bool) (*registry.Device, error) {
	deadline := time.NewTimer(d.confirmWait)
	defer deadline.Stop()
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrConfirmationTimeout
		case <-ticker.C:
			if !d.reconciler.ReportedSince(token, mark, desired) {
				continue
			}
			dev, err := d.store.GetDeviceByToken(ctx, token)
			if err != nil {
				if errors.Is(err, registry.ErrDeviceNotFound) {
					return nil, ErrUnknownDevice
				}
				return nil, fmt.Errorf("reading device after confirmation: %w", err)
			}
			return dev, nil
		}
	}
}
