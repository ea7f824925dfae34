package resilience

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// GuardedSink forwards words to a best-effort sink through a [Breaker].
// Failures are logged and swallowed, so the decode carries on; while the
// breaker is open words are dropped without calling the inner sink.
type GuardedSink struct {
	inner   tdm.Sink
	breaker *Breaker

	dropped atomic.Int64
}

// NewGuardedSink wraps inner.
func NewGuardedSink(inner tdm.Sink, cfg BreakerConfig) *GuardedSink {
	return &GuardedSink{inner: inner, breaker: NewBreaker(cfg)}
}

// Emit implements [tdm.Sink]. It never returns an error.
func (g *GuardedSink) Emit(w tdm.Word) error {
	err := g.breaker.Do(func() error { return g.inner.Emit(w) })
	if err == nil {
		return nil
	}
	if n := g.dropped.Add(1); n == 1 || !errors.Is(err, ErrOpen) {
		slog.Warn("dropping word for unavailable sink",
			"name", g.breaker.name,
			"channel", w.Channel,
			"sample", w.End,
			"dropped", n,
			"err", err,
		)
	}
	return nil
}

// Dropped returns the number of words that did not reach the inner sink.
func (g *GuardedSink) Dropped() int64 { return g.dropped.Load() }

// State returns the state of the guarding breaker.
func (g *GuardedSink) State() State { return g.breaker.State() }
