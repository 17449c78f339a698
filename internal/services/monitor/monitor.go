// Package monitor polls a woken device until it answers or the attempt budget is exhausted.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/scheduler"
	"github.com/fgeck/wakeonlan-homelab/internal/services/probe"
	"github.com/rs/zerolog"
)

// ErrExhausted is reported when every attempt failed to reach the device.
var ErrExhausted = errors.New("reachability attempts exhausted")

// Defaults for a wake attempt.
const (
	DefaultMaxAttempts  = 5
	DefaultBackoff      = 10 * time.Second
	DefaultInitialDelay = 30 * time.Second
)

// Phase is the state of a monitor.
type Phase string

const (
	PhaseScheduled Phase = "SCHEDULED"
	PhaseProbing   Phase = "PROBING"
	PhaseRetrying  Phase = "RETRYING"
	PhaseSucceeded Phase = "SUCCEEDED"
	PhaseFailed    Phase = "FAILED"
)

// Terminal reports whether p is a terminal phase.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Outcome is the terminal report of a monitor.
type Outcome struct {
	Attempt    models.WakeAttempt
	Generation uint64
	Phase      Phase
	Error      error // ErrExhausted on failure
}

// Service defines the interface for retrying wake monitors.
type Service interface {
	Start(attempt models.WakeAttempt, done func(Outcome)) uint64
	Cancel(host string) bool
	Phase(host string) (Phase, bool)
}

type tracked struct {
	generation uint64
	phase      Phase
}

// Impl implements the monitor Service on top of the unique-work scheduler.
type Impl struct {
	sched  *scheduler.Scheduler
	prober probe.Prober
	logger zerolog.Logger

	mu     sync.Mutex
	phases map[string]tracked
}

// New creates a monitor service.
func New(logger zerolog.Logger, sched *scheduler.Scheduler, prober probe.Prober) *Impl {
	return &Impl{
		sched:  sched,
		prober: prober,
		logger: logger,
		phases: make(map[string]tracked),
	}
}

// WithDefaults fills unset fields of a with the default wake attempt parameters.
func WithDefaults(a models.WakeAttempt) models.WakeAttempt {
	if a.MaxAttempts <= 0 {
		a.MaxAttempts = DefaultMaxAttempts
	}
	if a.Timeout <= 0 {
		a.Timeout = probe.DefaultBackgroundTimeout
	}
	if a.Backoff <= 0 {
		a.Backoff = DefaultBackoff
	}
	return a
}

// Start schedules a monitor for attempt.TargetHost, replacing any outstanding monitor for that host.
// done receives exactly one Outcome unless the monitor is replaced or cancelled first.
func (m *Impl) Start(attempt models.WakeAttempt, done func(Outcome)) uint64 {
	attempt = WithDefaults(attempt)
	host := attempt.TargetHost

	policy := scheduler.Policy{
		MaxAttempts:  attempt.MaxAttempts,
		Backoff:      attempt.Backoff,
		InitialDelay: attempt.InitialDelay,
	}

	// Hold the lock across Enqueue so the first attempt cannot record its phase before Scheduled.
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.sched.Enqueue(host, policy, func(ctx context.Context, run scheduler.Run) scheduler.Result {
		return m.attempt(ctx, attempt, run)
	}, func(c scheduler.Completion) {
		m.complete(attempt, c, done)
	})
	m.phases[host] = tracked{generation: gen, phase: PhaseScheduled}

	m.logger.Info().
		Str("host", host).
		Str("mac", attempt.MACAddress).
		Int("max_attempts", attempt.MaxAttempts).
		Dur("backoff", attempt.Backoff).
		Dur("initial_delay", attempt.InitialDelay).
		Uint64("generation", gen).
		Msg("wake monitor scheduled")

	return gen
}

func (m *Impl) attempt(ctx context.Context, a models.WakeAttempt, run scheduler.Run) scheduler.Result {
	m.setPhase(a.TargetHost, run.Generation, PhaseProbing)

	result, err := m.prober.Probe(ctx, a.TargetHost, a.Timeout)

	logEvent := m.logger.Debug().
		Str("host", a.TargetHost).
		Int("attempt", run.Attempt).
		Int("max_attempts", a.MaxAttempts).
		Str("result", result.String())
	if err != nil {
		logEvent = logEvent.Err(err)
	}
	logEvent.Msg("wake monitor probe finished")

	if result == probe.Reachable {
		return scheduler.Success
	}
	if run.Attempt < a.MaxAttempts {
		m.setPhase(a.TargetHost, run.Generation, PhaseRetrying)
	}
	return scheduler.Retry
}

func (m *Impl) complete(a models.WakeAttempt, c scheduler.Completion, done func(Outcome)) {
	a.AttemptsMade = c.Attempts
	out := Outcome{Attempt: a, Generation: c.Generation, Phase: PhaseSucceeded}
	if c.Status != scheduler.StatusSucceeded {
		out.Phase = PhaseFailed
		out.Error = ErrExhausted
	}
	m.setPhase(a.TargetHost, c.Generation, out.Phase)

	m.logger.Info().
		Str("host", a.TargetHost).
		Int("attempts", c.Attempts).
		Str("phase", string(out.Phase)).
		Msg("wake monitor finished")

	if done != nil {
		done(out)
	}
}

// setPhase records p if gen is the tracked generation for host.
func (m *Impl) setPhase(host string, gen uint64, p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.phases[host]; !ok || cur.generation != gen {
		return
	}
	m.phases[host] = tracked{generation: gen, phase: p}
}

// Phase returns the last recorded phase of the monitor for host.
// A monitor that stopped without a terminal phase, because its scheduler was closed, is not reported.
func (m *Impl) Phase(host string) (Phase, bool) {
	m.mu.Lock()
	t, ok := m.phases[host]
	m.mu.Unlock()

	if !ok || t.phase.Terminal() {
		return t.phase, ok
	}
	if !m.sched.Current(host, t.generation) {
		return "", false
	}
	return t.phase, true
}

// Cancel suppresses future attempts and the terminal report of the monitor for host.
func (m *Impl) Cancel(host string) bool {
	cancelled := m.sched.Cancel(host)
	if cancelled {
		m.mu.Lock()
		delete(m.phases, host)
		m.mu.Unlock()
		m.logger.Info().Str("host", host).Msg("wake monitor cancelled")
	}
	return cancelled
}
