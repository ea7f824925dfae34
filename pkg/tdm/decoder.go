package tdm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Sample is the state of the three bus lines at one qualifying clock edge.
type Sample struct {
	Clock bool
	Frame bool
	Data  bool

	// Index is the absolute sample number of this edge in the capture.
	Index int64
}

// Source supplies bus samples to the decoder.
//
// NextEdge blocks until the next sample whose clock line equals activeLevel
// and returns it. It returns io.EOF once the capture is exhausted, which ends
// the decode normally. Any other error aborts the run.
type Source interface {
	NextEdge(activeLevel bool) (Sample, error)
}

// Word is one decoded channel sample. It covers the half-open sample range
// [Start, End) of the capture.
type Word struct {
	Start int64
	End   int64

	// Channel is the position of the word in its frame, starting at 1.
	Channel int

	// Value holds the word's bits, MSB first.
	Value uint64

	// Bits is the configured word width, used for formatting.
	Bits int
}

// Sink receives decoded words in the order they complete.
type Sink interface {
	Emit(w Word) error
}

// SinkFunc adapts a plain function to the [Sink] interface.
type SinkFunc func(w Word) error

// Emit calls f(w).
func (f SinkFunc) Emit(w Word) error { return f(w) }

// Stats summarises a decode run.
type Stats struct {
	// Edges is the number of qualifying clock edges consumed.
	Edges int64

	// Frames is the number of frame starts detected.
	Frames int64

	// Words is the number of words emitted.
	Words int64

	// Synchronized is false when no frame start was ever seen, in which case
	// no words were emitted.
	Synchronized bool
}

// Observer is notified at the start and end of every decode run. It is used
// to feed metrics without coupling the decoder to a telemetry backend.
type Observer interface {
	DecodeStarted(ctx context.Context)
	DecodeFinished(ctx context.Context, stats Stats, elapsed time.Duration)
}

// Option configures a [Decoder].
type Option func(*Decoder)

// WithLogger sets the logger used for run diagnostics. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// WithObserver attaches an [Observer] that is told about every run.
func WithObserver(o Observer) Option {
	return func(d *Decoder) {
		d.observer = o
	}
}

// Decoder turns a stream of clock edges into channel words. The
// configuration is fixed at construction; [Decoder.Run] may be called any
// number of times, concurrently, since each run owns a fresh [State].
type Decoder struct {
	cfg      Config
	log      *slog.Logger
	observer Observer
}

// NewDecoder validates cfg and returns a ready decoder. An invalid cfg yields
// a [*ConfigurationError].
func NewDecoder(cfg Config, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the decoder's configuration.
func (d *Decoder) Config() Config { return d.cfg }

// Run pulls edges from src until it reports io.EOF and pushes every
// completed word to sink.
//
// Signal problems such as missing frame pulses or stuck lines are not errors;
// they just produce fewer words. Run fails only when src or sink return an
// error, or when ctx is cancelled between edges.
func (d *Decoder) Run(ctx context.Context, src Source, sink Sink) (Stats, error) {
	st := NewState(d.cfg.BitsPerSample)
	active := d.cfg.ClockEdge.ActiveLevel()

	if d.observer != nil {
		d.observer.DecodeStarted(ctx)
	}
	start := time.Now()
	defer func() {
		stats := st.Stats()
		d.log.DebugContext(ctx, "tdm: decode finished",
			"edges", stats.Edges,
			"frames", stats.Frames,
			"words", stats.Words,
			"synchronized", stats.Synchronized,
		)
		if d.observer != nil {
			d.observer.DecodeFinished(ctx, stats, time.Since(start))
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return st.Stats(), err
		}

		smp, err := src.NextEdge(active)
		if errors.Is(err, io.EOF) {
			return st.Stats(), nil
		}
		if err != nil {
			return st.Stats(), fmt.Errorf("tdm: read edge: %w", err)
		}

		wasSynced := st.Synchronized()
		w, ok := st.Step(smp)
		if !wasSynced && st.Synchronized() {
			d.log.DebugContext(ctx, "tdm: synchronized on frame start", "sample", smp.Index)
		}
		if !ok {
			continue
		}
		if err := sink.Emit(w); err != nil {
			return st.Stats(), fmt.Errorf("tdm: emit channel %d at sample %d: %w", w.Channel, w.End, err)
		}
	}
}

// Decode is a convenience wrapper that runs a decoder built from cfg over src
// and returns every word in emission order.
func Decode(ctx context.Context, cfg Config, src Source) ([]Word, error) {
	d, err := NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	var words []Word
	_, err = d.Run(ctx, src, SinkFunc(func(w Word) error {
		words = append(words, w)
		return nil
	}))
	return words, err
}
