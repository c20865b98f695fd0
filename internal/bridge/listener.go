package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/infrastructure/mqtt"
)

// Listener subscribes to the device status topic filter and feeds
// decoded events to the reconciler in arrival order.
type Listener struct {
	transport  Transport
	reconciler *Reconciler
	topics     mqtt.Topics
	qos        byte
	reconnect  config.MQTTReconnectConfig
	logger     *logging.Logger

	healthy atomic.Bool
}

// NewListener creates an ingress listener. QoS and reconnect policy
// come from the MQTT section of the config.
func NewListener(transport Transport, reconciler *Reconciler, cfg config.MQTTConfig, logger *logging.Logger) *Listener {
	l := &Listener{
		transport:  transport,
		reconciler: reconciler,
		qos:        byte(cfg.QoS), //nolint:gosec // validated to 0..2
		reconnect:  cfg.Reconnect,
		logger:     logger,
	}
	l.healthy.Store(true)
	return l
}

// Start subscribes to Devices/+/status and launches the connection
// supervisor. The subscription survives reconnects: the transport
// restores it on every successful reconnect.
func (l *Listener) Start(ctx context.Context) error {
	if err := l.transport.Subscribe(l.topics.AllDeviceStatus(), l.qos, l.handleMessage); err != nil {
		return err
	}
	go l.superviseConnection(ctx)
	l.logger.Info("ingress listener started", "topic", l.topics.AllDeviceStatus(), "qos", l.qos)
	return nil
}

// handleMessage processes one status message. Every failure mode is
// absorbed here: a bad message is logged and skipped, never allowed to
// stop the subscription.
func (l *Listener) handleMessage(topic string, payload []byte) error {
	token, ok := mqtt.TokenFromStatusTopic(topic)
	if !ok {
		l.logger.Warn("status message on unexpected topic", "topic", topic)
		return nil
	}

	event, err := DecodeStatusPayload(payload)
	if err != nil {
		l.logger.Warn("skipping malformed status payload",
			"token", token, "payload", truncate(string(payload), 128))
		return nil
	}

	ctx := context.Background()
	if event.Status.Known {
		if _, err := l.reconciler.ApplyStatus(ctx, token, event.Status.Value, event.Raw); err != nil {
			l.logger.Error("reconciling status event", "token", token, "error", err)
		}
	}
	if event.Establish.Known {
		if _, err := l.reconciler.ApplyConnection(ctx, token, event.Establish.Value, event.Raw); err != nil {
			l.logger.Error("reconciling connection event", "token", token, "error", err)
		}
	}
	if !event.Status.Known && !event.Establish.Known {
		l.logger.Debug("status payload carried no recognized value",
			"token", token, "payload", truncate(event.Raw, 128))
	}
	return nil
}

// superviseConnection watches the transport. The paho client reconnects
// on its own; this loop only tracks how long the connection has been
// down and flips the health flag once the policy is exhausted.
func (l *Listener) superviseConnection(ctx context.Context) {
	delay := time.Duration(l.reconnect.InitialDelay) * time.Second
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := time.Duration(l.reconnect.MaxDelay) * time.Second
	if maxDelay < delay {
		maxDelay = delay
	}

	attempts := 0
	wait := delay
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if l.transport.IsConnected() {
			if !l.healthy.Load() {
				l.logger.Info("mqtt connection restored")
			}
			l.healthy.Store(true)
			attempts = 0
			wait = delay
			continue
		}

		attempts++
		if l.reconnect.MaxAttempts > 0 && attempts >= l.reconnect.MaxAttempts {
			if l.healthy.Load() {
				l.logger.Error("mqtt reconnect policy exhausted, marking bridge unhealthy",
					"attempts", attempts)
			}
			l.healthy.Store(false)
		} else {
			l.logger.Warn("mqtt connection down", "attempts", attempts, "next_check", wait.String())
		}

		wait *= 2
		if wait > maxDelay {
			wait = maxDelay
		}
	}
}

// HealthCheck reports transport health. Unhealthy means the connection
// stayed down past the reconnect policy.
func (l *Listener) HealthCheck(_ context.Context) error {
	if !l.healthy.Load() {
		return ErrTransportUnhealthy
	}
	if !l.transport.IsConnected() {
		return errors.New("mqtt transport reconnecting")
	}
	return nil
}

// truncate caps a string for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
