// Package resilience keeps optional outbound sinks from stalling or failing a
// decode.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open).
// [GuardedSink] puts one in front of a [tdm.Sink] so that a broker outage
// drops words for a while instead of blocking every emit on a timeout.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrOpen] until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure opens it again.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures that open the
	// breaker. Default: 3.
	MaxFailures int

	// CoolDown is how long the breaker stays open before probing.
	// Default: 10s.
	CoolDown time.Duration

	// Probes is the number of successful half-open calls needed to close
	// the breaker again. Default: 1.
	Probes int

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name        string
	maxFailures int
	coolDown    time.Duration
	probes      int
	now         func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probing   int
	probeWins int
}

// NewBreaker creates a [Breaker]. Zero-value fields in cfg take their
// defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 10 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		coolDown:    cfg.CoolDown,
		probes:      cfg.Probes,
		now:         cfg.Now,
	}
}

// Do runs fn unless the breaker is open. While half-open at most Probes calls
// are in flight; extra callers get [ErrOpen].
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.coolDown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = 0
		b.probeWins = 0
		slog.Info("circuit half-open, probing", "name", b.name)
	}
	probe := b.state == StateHalfOpen
	if probe {
		if b.probing >= b.probes {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err != nil && probe:
		b.open()
	case err != nil:
		b.failures++
		if b.failures >= b.maxFailures {
			b.open()
		}
	case probe:
		b.probeWins++
		if b.probeWins >= b.probes {
			b.state = StateClosed
			b.failures = 0
			slog.Info("circuit closed", "name", b.name)
		}
	default:
		b.failures = 0
	}
	return err
}

// open trips the breaker. b.mu must be held.
func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	slog.Warn("circuit opened", "name", b.name, "cool_down", b.coolDown)
}

// State returns the current state. An open breaker whose cool-down has
// elapsed reports [StateHalfOpen]; the transition happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.coolDown {
		return StateHalfOpen
	}
	return b.state
}
