package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/mqtt"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// fakeStore is an in-memory StateStore/ScheduleStore for bridge tests.
type fakeStore struct {
	mu        sync.Mutex
	devices   map[string]*registry.Device // keyed by token
	audiences map[string][]string         // device ID -> authorized users
	schedules map[string]*registry.Schedule

	statusWrites     int
	connectionWrites int
	failUpdates      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices:   make(map[string]*registry.Device),
		audiences: make(map[string][]string),
		schedules: make(map[string]*registry.Schedule),
	}
}

func (s *fakeStore) addDevice(dev *registry.Device, audience ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[dev.Token] = dev
	s.audiences[dev.ID] = audience
}

func (s *fakeStore) GetDeviceByToken(_ context.Context, token string) (*registry.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[token]
	if !ok {
		return nil, registry.ErrDeviceNotFound
	}
	cpy := *dev
	return &cpy, nil
}

func (s *fakeStore) GetDevice(_ context.Context, id string) (*registry.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dev := range s.devices {
		if dev.ID == id {
			cpy := *dev
			return &cpy, nil
		}
	}
	return nil, registry.ErrDeviceNotFound
}

func (s *fakeStore) UpdateStatusByToken(_ context.Context, token string, status bool) (registry.UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates {
		return registry.OutcomeUnknownDevice, fmt.Errorf("store unavailable")
	}
	dev, ok := s.devices[token]
	if !ok {
		return registry.OutcomeUnknownDevice, nil
	}
	if dev.Status == status {
		return registry.OutcomeUnchanged, nil
	}
	dev.Status = status
	s.statusWrites++
	return registry.OutcomeChanged, nil
}

func (s *fakeStore) UpdateConnectionByToken(_ context.Context, token string, connected bool) (registry.UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[token]
	if !ok {
		return registry.OutcomeUnknownDevice, nil
	}
	if dev.Connection == connected {
		return registry.OutcomeUnchanged, nil
	}
	dev.Connection = connected
	s.connectionWrites++
	return registry.OutcomeChanged, nil
}

func (s *fakeStore) AuthorizedUserIDs(_ context.Context, deviceID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.audiences[deviceID]
	if !ok {
		return nil, registry.ErrDeviceNotFound
	}
	return append([]string(nil), users...), nil
}

func (s *fakeStore) CanAccess(_ context.Context, deviceID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.audiences[deviceID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) DeleteDevice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, dev := range s.devices {
		if dev.ID == id {
			delete(s.devices, token)
			delete(s.audiences, id)
			return nil
		}
	}
	return registry.ErrDeviceNotFound
}

func (s *fakeStore) DueSchedules(_ context.Context, now time.Time) ([]registry.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hhmm := now.Format("15:04")
	var due []registry.Schedule
	for _, sched := range s.schedules {
		if (!sched.OnFired && sched.OnTime <= hhmm) || (!sched.OffFired && sched.OffTime <= hhmm) {
			due = append(due, *sched)
		}
	}
	return due, nil
}

func (s *fakeStore) MarkScheduleFired(_ context.Context, id string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return registry.ErrScheduleNotFound
	}
	if on {
		sched.OnFired = true
	} else {
		sched.OffFired = true
	}
	return nil
}

func (s *fakeStore) ResetFiredFlags(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sched := range s.schedules {
		if sched.OnFired || sched.OffFired {
			sched.OnFired = false
			sched.OffFired = false
			n++
		}
	}
	return n, nil
}

// fakeHub records per-user deliveries.
type fakeHub struct {
	mu       sync.Mutex
	messages map[string][]StatusMessage
}

func newFakeHub() *fakeHub {
	return &fakeHub{messages: make(map[string][]StatusMessage)}
}

func (h *fakeHub) SendToUser(userID string, message any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg, ok := message.(StatusMessage); ok {
		h.messages[userID] = append(h.messages[userID], msg)
	}
}

func (h *fakeHub) countFor(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages[userID])
}

func (h *fakeHub) lastFor(userID string) (StatusMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.messages[userID]
	if len(msgs) == 0 {
		return StatusMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// fakeTransport records published commands; publish can be forced to fail.
type fakeTransport struct {
	mu          sync.Mutex
	published   []publishedCommand
	subscribed  []string
	failPublish bool
	connected   bool
}

type publishedCommand struct {
	topic   string
	payload string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true}
}

func (t *fakeTransport) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed = append(t.subscribed, topic)
	return nil
}

func (t *fakeTransport) PublishCommand(topic, payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failPublish {
		return fmt.Errorf("broker unreachable")
	}
	t.published = append(t.published, publishedCommand{topic: topic, payload: payload})
	return nil
}

func (t *fakeTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) publishCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.published)
}

func (t *fakeTransport) lastPublished() (publishedCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.published) == 0 {
		return publishedCommand{}, false
	}
	return t.published[len(t.published)-1], true
}
