package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// Reconciler applies device events to the registry idempotently and
// fans out only when the stored value actually changed.
//
// All writes for a token pass through a per-token mutex. The ingress
// path and the dispatcher's optimistic path share one Reconciler, so a
// device report and a user command racing on the same lamp are applied
// one at a time, most recent last.
//
// Device-originated status reports are additionally recorded with a
// sequence number. The dispatcher's confirmation wait needs to know
// that the device itself echoed the desired state; the persisted status
// alone cannot tell an echo apart from the dispatcher's own optimistic
// write.
type Reconciler struct {
	store     StateStore
	fanout    *Fanout
	telemetry Telemetry // optional, nil when disabled
	logger    *logging.Logger

	mu     sync.Mutex
	tokens map[string]*sync.Mutex

	reportMu sync.Mutex
	seq      uint64
	reports  map[string]deviceReport
}

type deviceReport struct {
	seq    uint64
	status bool
}

// NewReconciler creates a reconciler over the given store and fan-out.
func NewReconciler(store StateStore, fanout *Fanout, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		fanout:  fanout,
		logger:  logger,
		tokens:  make(map[string]*sync.Mutex),
		reports: make(map[string]deviceReport),
	}
}

// lockToken acquires the serialization mutex for a token and returns
// its unlock function. Token mutexes are created on first use and kept
// for the process lifetime; the set of tokens is bounded by the
// registry.
func (r *Reconciler) lockToken(token string) func() {
	r.mu.Lock()
	m, ok := r.tokens[token]
	if !ok {
		m = &sync.Mutex{}
		r.tokens[token] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// SetTelemetry attaches an optional state-transition recorder. Only
// transitions that changed the stored value are recorded. Must be called
// before the listener starts.
func (r *Reconciler) SetTelemetry(t Telemetry) {
	r.telemetry = t
}

// ApplyStatus reconciles a device-reported on/off state. On a real
// change the updated device is fanned out to its authorized users.
// Unknown tokens are reported in the outcome, not as an error. The
// report is recorded for confirmation waiters even when the value
// matched the stored one.
func (r *Reconciler) ApplyStatus(ctx context.Context, token string, status bool, raw string) (registry.UpdateOutcome, error) {
	outcome, err := r.applyStatus(ctx, token, status, raw)
	if err != nil {
		return outcome, err
	}
	if outcome != registry.OutcomeUnknownDevice {
		r.recordReport(token, status)
	}
	return outcome, nil
}

// ApplyDesired applies a user's desired state through the same
// conditional-write and fan-out path as a device report, without
// recording it as a device report.
func (r *Reconciler) ApplyDesired(ctx context.Context, token string, status bool, raw string) (registry.UpdateOutcome, error) {
	return r.applyStatus(ctx, token, status, raw)
}

func (r *Reconciler) applyStatus(ctx context.Context, token string, status bool, raw string) (registry.UpdateOutcome, error) {
	unlock := r.lockToken(token)
	defer unlock()

	outcome, err := r.store.UpdateStatusByToken(ctx, token, status)
	if err != nil {
		return outcome, fmt.Errorf("applying status for %s: %w", token, err)
	}

	switch outcome {
	case registry.OutcomeChanged:
		r.broadcast(ctx, token, raw)
		if r.telemetry != nil {
			r.telemetry.RecordStatus(token, status)
		}
	case registry.OutcomeUnknownDevice:
		r.logger.Warn("status event for unregistered token", "token", token)
	case registry.OutcomeUnchanged:
		// Duplicate value; nothing to deliver.
	}
	return outcome, nil
}

// ApplyConnection reconciles a device's reported connectivity.
func (r *Reconciler) ApplyConnection(ctx context.Context, token string, connected bool, raw string) (registry.UpdateOutcome, error) {
	unlock := r.lockToken(token)
	defer unlock()

	outcome, err := r.store.UpdateConnectionByToken(ctx, token, connected)
	if err != nil {
		return outcome, fmt.Errorf("applying connection for %s: %w", token, err)
	}

	switch outcome {
	case registry.OutcomeChanged:
		r.broadcast(ctx, token, raw)
		if r.telemetry != nil {
			r.telemetry.RecordConnection(token, connected)
		}
	case registry.OutcomeUnknownDevice:
		r.logger.Warn("connection event for unregistered token", "token", token)
	case registry.OutcomeUnchanged:
	}
	return outcome, nil
}

// broadcast reads back the device and fans its current state out. The
// read happens under the token lock, so the snapshot matches the write
// that triggered it.
func (r *Reconciler) broadcast(ctx context.Context, token, raw string) {
	dev, err := r.store.GetDeviceByToken(ctx, token)
	if err != nil {
		r.logger.Error("reading device after state change", "token", token, "error", err)
		return
	}
	r.fanout.Publish(ctx, dev, messageForDevice(dev, raw))
}

// recordReport notes a device-originated status report.
func (r *Reconciler) recordReport(token string, status bool) {
	r.reportMu.Lock()
	r.seq++
	r.reports[token] = deviceReport{seq: r.seq, status: status}
	r.reportMu.Unlock()
}

// ReportSeq returns the current report sequence number. A confirmation
// wait snapshots it before dispatching and only accepts reports issued
// afterwards, so a stale echo cannot confirm a fresh command.
func (r *Reconciler) ReportSeq() uint64 {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	return r.seq
}

// ReportedSince reports whether the device has echoed the given status
// after the sequence snapshot.
func (r *Reconciler) ReportedSince(token string, after uint64, status bool) bool {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	rep, ok := r.reports[token]
	return ok && rep.seq > after && rep.status == status
}
