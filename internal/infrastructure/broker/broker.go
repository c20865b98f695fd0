// Package broker runs an in-process MQTT broker for development
// deployments that have no external Mosquitto instance.
//
// It wraps mochi-mqtt behind the same lifecycle pattern as the other
// infrastructure components (New, Start, Close, HealthCheck) and is
// enabled with mqtt.embedded in the configuration. Production
// deployments point the bridge at a real broker instead.
package broker

import (
	"context"
	"fmt"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
)

// Broker is an embedded MQTT broker.
type Broker struct {
	server *mochi.Server
	logger *logging.Logger
	addr   string
}

// New creates an embedded broker listening on the configured MQTT port.
//
// When credentials are configured, only clients presenting them may
// connect; otherwise the broker is open (development default).
func New(cfg config.MQTTConfig, logger *logging.Logger) (*Broker, error) {
	server := mochi.New(&mochi.Options{InlineClient: false})

	if cfg.Auth.Username != "" {
		options := auth.Options{
			Ledger: &auth.Ledger{
				Auth: auth.AuthRules{
					{Username: auth.RString(cfg.Auth.Username), Password: auth.RString(cfg.Auth.Password), Allow: true},
				},
			},
		}
		if err := server.AddHook(new(auth.Hook), &options); err != nil {
			return nil, fmt.Errorf("adding auth hook: %w", err)
		}
	} else {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, fmt.Errorf("adding allow hook: %w", err)
		}
	}

	b := &Broker{
		server: server,
		logger: logger.With("component", "broker"),
		addr:   fmt.Sprintf(":%d", cfg.Broker.Port),
	}

	if err := server.AddHook(&presenceHook{logger: b.logger}, nil); err != nil {
		return nil, fmt.Errorf("adding presence hook: %w", err)
	}

	return b, nil
}

// Start attaches the TCP listener and serves in a background goroutine.
func (b *Broker) Start(_ context.Context) error {
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: b.addr})
	if err := b.server.AddListener(tcp); err != nil {
		return fmt.Errorf("adding broker listener on %s: %w", b.addr, err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.logger.Error("embedded broker stopped", "error", err)
		}
	}()

	b.logger.Info("embedded MQTT broker listening", "address", b.addr)
	return nil
}

// Close stops the broker and disconnects all clients.
func (b *Broker) Close() error {
	if err := b.server.Close(); err != nil {
		return fmt.Errorf("closing embedded broker: %w", err)
	}
	return nil
}

// HealthCheck reports whether the broker is accepting connections.
func (b *Broker) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("broker health check: %w", ctx.Err())
	default:
	}

	if b.server.Listeners.Len() == 0 {
		return fmt.Errorf("broker has no active listeners")
	}
	return nil
}
