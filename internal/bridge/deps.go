package bridge

import (
	"context"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/mqtt"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// StateStore is the registry surface the bridge writes through.
type StateStore interface {
	GetDeviceByToken(ctx context.Context, token string) (*registry.Device, error)
	UpdateStatusByToken(ctx context.Context, token string, status bool) (registry.UpdateOutcome, error)
	UpdateConnectionByToken(ctx context.Context, token string, connected bool) (registry.UpdateOutcome, error)
	AuthorizedUserIDs(ctx context.Context, deviceID string) ([]string, error)
	CanAccess(ctx context.Context, deviceID, userID string) (bool, error)
	DeleteDevice(ctx context.Context, id string) error
}

// ScheduleStore is the registry surface the schedule runner reads.
type ScheduleStore interface {
	DueSchedules(ctx context.Context, now time.Time) ([]registry.Schedule, error)
	MarkScheduleFired(ctx context.Context, id string, on bool) error
	ResetFiredFlags(ctx context.Context) (int64, error)
	GetDevice(ctx context.Context, id string) (*registry.Device, error)
	AuthorizedUserIDs(ctx context.Context, deviceID string) ([]string, error)
}

// Hub delivers a message to every live session of a user. Delivery is
// best-effort; users with no sessions cost nothing.
type Hub interface {
	SendToUser(userID string, message any)
}

// Transport is the MQTT surface the bridge uses.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishCommand(topic, payload string) error
	IsConnected() bool
}

// Telemetry records state transitions to a time-series store.
// Implementations must not block; the reconciler calls these under the
// per-token lock.
type Telemetry interface {
	RecordStatus(token string, status bool)
	RecordConnection(token string, connected bool)
}
