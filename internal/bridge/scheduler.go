package bridge

import (
	"context"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// commandSender is the dispatch surface the scheduler needs. Satisfied
// by *Dispatcher; a test can substitute a recorder.
type commandSender interface {
	Dispatch(ctx context.Context, userID, token, rawPayload string, confirm bool) (*Result, error)
}

// Scheduler fires device schedules: ON at on_time, OFF at off_time,
// dispatched through the normal command path as the home owner, without
// confirmation. A failure on one schedule is logged and never stops the
// runner or the other schedules.
type Scheduler struct {
	store      ScheduleStore
	dispatcher commandSender
	interval   time.Duration
	logger     *logging.Logger

	now func() time.Time
}

// NewScheduler creates a schedule runner that checks once a minute.
func NewScheduler(store ScheduleStore, dispatcher commandSender, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		interval:   time.Minute,
		logger:     logger,
		now:        time.Now,
	}
}

// Run blocks until the context is cancelled, firing due schedules on
// each tick and clearing fired flags when the day rolls over.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	lastDay := s.now().Day()
	s.logger.Info("schedule runner started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("schedule runner stopped")
			return
		case <-ticker.C:
			now := s.now()
			if now.Day() != lastDay {
				lastDay = now.Day()
				if n, err := s.store.ResetFiredFlags(ctx); err != nil {
					s.logger.Error("resetting schedule fired flags", "error", err)
				} else if n > 0 {
					s.logger.Info("schedule fired flags reset", "count", n)
				}
			}
			s.Tick(ctx, now)
		}
	}
}

// Tick fires every schedule due at the given time. Exposed separately
// so tests can drive it without waiting on the ticker.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	due, err := s.store.DueSchedules(ctx, now)
	if err != nil {
		s.logger.Error("querying due schedules", "error", err)
		return
	}

	hhmm := now.Format("15:04")
	for _, sched := range due {
		if !sched.OnFired && sched.OnTime <= hhmm {
			s.fire(ctx, sched, true)
		}
		if !sched.OffFired && sched.OffTime <= hhmm {
			s.fire(ctx, sched, false)
		}
	}
}

// fire dispatches one schedule action and marks it fired. The fired
// flag is set even when dispatch fails, so a broken schedule does not
// retry every minute for the rest of the day.
func (s *Scheduler) fire(ctx context.Context, sched registry.Schedule, on bool) {
	command := CommandOff
	if on {
		command = CommandOn
	}

	dev, err := s.store.GetDevice(ctx, sched.DeviceID)
	if err != nil {
		s.logger.Error("resolving scheduled device",
			"schedule", sched.ID, "device", sched.DeviceID, "error", err)
		s.markFired(ctx, sched.ID, on)
		return
	}

	// Schedules run on the home owner's authority; the owner is always
	// the first entry of the authorized set.
	users, err := s.store.AuthorizedUserIDs(ctx, dev.ID)
	if err != nil || len(users) == 0 {
		s.logger.Error("resolving schedule owner",
			"schedule", sched.ID, "device", dev.Name, "error", err)
		s.markFired(ctx, sched.ID, on)
		return
	}

	if _, err := s.dispatcher.Dispatch(ctx, users[0], dev.Token, command, false); err != nil {
		s.logger.Error("dispatching scheduled command",
			"schedule", sched.ID, "device", dev.Name, "command", command, "error", err)
	} else {
		s.logger.Info("schedule fired",
			"schedule", sched.ID, "device", dev.Name, "command", command)
	}
	s.markFired(ctx, sched.ID, on)
}

func (s *Scheduler) markFired(ctx context.Context, id string, on bool) {
	if err := s.store.MarkScheduleFired(ctx, id, on); err != nil {
		s.logger.Error("marking schedule fired", "schedule", id, "error", err)
	}
}
