package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// recordingSender captures dispatched schedule commands.
type recordingSender struct {
	mu    sync.Mutex
	calls []dispatchCall
}

type dispatchCall struct {
	userID  string
	token   string
	payload string
	confirm bool
}

func (r *recordingSender) Dispatch(_ context.Context, userID, token, rawPayload string, confirm bool) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dispatchCall{userID, token, rawPayload, confirm})
	return &Result{}, nil
}

func newTestScheduler(store *fakeStore) (*Scheduler, *recordingSender) {
	sender := &recordingSender{}
	return NewScheduler(store, sender, logging.Default()), sender
}

func TestScheduler_FiresDueOnTime(t *testing.T) {
	store := newFakeStore()
	store.addDevice(&registry.Device{ID: "dev-1", Token: "abc123", Name: "Sofa Lamp"},
		"user-owner")
	store.schedules["sched-1"] = &registry.Schedule{
		ID: "sched-1", DeviceID: "dev-1", OnTime: "07:00", OffTime: "22:00",
	}
	s, sender := newTestScheduler(store)

	now := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(sender.calls))
	}
	call := sender.calls[0]
	if call.userID != "user-owner" || call.token != "abc123" || call.payload != "ON" || call.confirm {
		t.Errorf("dispatch = %+v", call)
	}
	if !store.schedules["sched-1"].OnFired {
		t.Error("on_fired should be set after firing")
	}
}

func TestScheduler_FiresExactlyOnce(t *testing.T) {
	store := newFakeStore()
	store.addDevice(&registry.Device{ID: "dev-1", Token: "abc123", Name: "Sofa Lamp"},
		"user-owner")
	store.schedules["sched-1"] = &registry.Schedule{
		ID: "sched-1", DeviceID: "dev-1", OnTime: "07:00", OffTime: "22:00",
	}
	s, sender := newTestScheduler(store)
	ctx := context.Background()

	// Two ticks in the same minute and one later: still a single fire.
	now := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	s.Tick(ctx, now)
	s.Tick(ctx, now)
	s.Tick(ctx, now.Add(5*time.Minute))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", len(sender.calls))
	}
}

func TestScheduler_FiresOffTime(t *testing.T) {
	store := newFakeStore()
	store.addDevice(&registry.Device{ID: "dev-1", Token: "abc123", Name: "Sofa Lamp"},
		"user-owner")
	store.schedules["sched-1"] = &registry.Schedule{
		ID: "sched-1", DeviceID: "dev-1", OnTime: "07:00", OffTime: "22:00",
		OnFired: true,
	}
	s, sender := newTestScheduler(store)

	s.Tick(context.Background(), time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 1 || sender.calls[0].payload != "OFF" {
		t.Fatalf("calls = %+v", sender.calls)
	}
	if !store.schedules["sched-1"].OffFired {
		t.Error("off_fired should be set after firing")
	}
}

func TestScheduler_MissingDeviceMarksFired(t *testing.T) {
	store := newFakeStore()
	store.schedules["sched-orphan"] = &registry.Schedule{
		ID: "sched-orphan", DeviceID: "dev-gone", OnTime: "07:00", OffTime: "22:00",
	}
	s, sender := newTestScheduler(store)

	s.Tick(context.Background(), time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 0 {
		t.Errorf("orphan schedule should not dispatch, got %+v", sender.calls)
	}
	if !store.schedules["sched-orphan"].OnFired {
		t.Error("orphan schedule should still be marked fired to stop retries")
	}
}
