package bridge

import (
	"context"

	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
)

// Service owns the bridge components and their lifecycle.
type Service struct {
	Reconciler *Reconciler
	Dispatcher *Dispatcher
	Fanout     *Fanout

	listener  *Listener
	scheduler *Scheduler
	cancel    context.CancelFunc
	logger    *logging.Logger
}

// ServiceDeps carries the wired collaborators for a bridge service.
type ServiceDeps struct {
	Store     StateStore
	Schedules ScheduleStore
	Transport Transport
	Hub       Hub
	Telemetry Telemetry // optional
	Config    *config.Config
	Logger    *logging.Logger
}

// NewService assembles the bridge: fan-out over the hub, reconciler
// over the store, dispatcher and listener over the transport, plus the
// schedule runner when enabled.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	fanout := NewFanout(deps.Store, deps.Hub, logger)
	reconciler := NewReconciler(deps.Store, fanout, logger)
	if deps.Telemetry != nil {
		reconciler.SetTelemetry(deps.Telemetry)
	}
	dispatcher := NewDispatcher(deps.Store, deps.Transport, reconciler, fanout,
		deps.Config.Bridge, logger)
	listener := NewListener(deps.Transport, reconciler, deps.Config.MQTT, logger)

	svc := &Service{
		Reconciler: reconciler,
		Dispatcher: dispatcher,
		Fanout:     fanout,
		listener:   listener,
		logger:     logger,
	}
	if deps.Config.Bridge.Schedules {
		svc.scheduler = NewScheduler(deps.Schedules, dispatcher, logger)
	}
	return svc
}

// Start subscribes the listener and launches the schedule runner.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.listener.Start(runCtx); err != nil {
		cancel()
		return err
	}
	if s.scheduler != nil {
		go s.scheduler.Run(runCtx)
	}
	return nil
}

// Close stops the background workers. The MQTT client itself is owned
// and closed by the caller.
func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("bridge service stopped")
}

// HealthCheck reports bridge health, currently transport connectivity.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.listener.HealthCheck(ctx)
}
