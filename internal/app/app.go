// Package app wires the tdmdecode subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the output registry,
// metrics and optional MQTT publisher from the config, Decode and
// DecodeFiles run the decoder, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithPublisher). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/tdmdecode/internal/config"
	"github.com/MrWong99/tdmdecode/internal/observe"
	"github.com/MrWong99/tdmdecode/internal/output"
	"github.com/MrWong99/tdmdecode/internal/output/mqttsink"
	"github.com/MrWong99/tdmdecode/internal/resilience"
	"github.com/MrWong99/tdmdecode/pkg/capture"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// Publisher is an outbound sink that every decoded word is mirrored to, such
// as the MQTT publisher.
type Publisher interface {
	tdm.Sink
	io.Closer
	Connected() bool
}

// App owns all subsystem lifetimes.
type App struct {
	cfg      atomic.Pointer[config.Config]
	registry *config.Registry
	metrics  *observe.Metrics
	tracer   trace.Tracer

	publisher Publisher
	mirror    *resilience.GuardedSink
	runs      *Runs

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTracerProvider sets the provider decode spans are recorded with.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) { a.tracer = observe.TracerFrom(tp) }
}

// WithPublisher injects an outbound publisher instead of dialling the MQTT
// broker named in the config.
func WithPublisher(p Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithRegistry injects an output registry. The built-in formats are
// registered into it.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. cfg must already be validated.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{runs: newRuns()}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}

	if a.registry == nil {
		a.registry = config.NewRegistry()
	}
	output.Register(a.registry)

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.tracer == nil {
		a.tracer = observe.Tracer()
	}

	if a.publisher == nil && cfg.MQTT.Enabled() {
		p, err := mqttsink.New(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("app: init mqtt: %w", err)
		}
		a.publisher = p
		slog.Info("publishing decoded words to mqtt", "broker", cfg.MQTT.Broker, "topic_prefix", cfg.MQTT.TopicPrefix)
	}
	if a.publisher != nil {
		a.mirror = resilience.NewGuardedSink(a.publisher, resilience.BreakerConfig{Name: "publisher"})
		a.closers = append(a.closers, a.publisher.Close)
	}

	return a, nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// SetConfig replaces the active configuration. Runs already in flight keep
// the configuration they started with.
func (a *App) SetConfig(cfg *config.Config) { a.cfg.Store(cfg) }

// Registry returns the output sink registry.
func (a *App) Registry() *config.Registry { return a.registry }

// Publisher returns the outbound publisher, or nil when none is configured.
func (a *App) Publisher() Publisher { return a.publisher }

// Dropped returns how many words failed to reach the publisher.
func (a *App) Dropped() int64 {
	if a.mirror == nil {
		return 0
	}
	return a.mirror.Dropped()
}

// Runs returns the tracker of in-flight decode runs.
func (a *App) Runs() *Runs { return a.runs }

// ─── Decoding ────────────────────────────────────────────────────────────────

// Overrides replaces decoder and capture settings for a single run. Zero
// values keep the configured setting.
type Overrides struct {
	BitsPerSample int
	ClockEdge     string
	Format        capture.Format
}

// DecoderConfig returns the configured decoder settings with o applied.
func (a *App) DecoderConfig(o Overrides) (tdm.Config, error) {
	cfg := *a.Config()
	if o.BitsPerSample != 0 {
		cfg.Decoder.BitsPerSample = o.BitsPerSample
	}
	if o.ClockEdge != "" {
		cfg.Decoder.ClockEdge = o.ClockEdge
	}
	return cfg.DecoderConfig()
}

// Read parses a capture from r using the configured channel mapping. The
// format comes from o when set, otherwise from the config.
func (a *App) Read(r io.Reader, o Overrides) (*capture.Capture, error) {
	cfg := a.Config()
	format := cfg.Capture.Format
	if o.Format != "" {
		format = o.Format
	}
	return capture.Read(r, format, cfg.Mapping())
}

// Decode runs a decoder over c and pushes every word to sink and to the
// publisher, if any. Publisher failures never fail the run; see
// [App.Dropped]. The run is tracked under the run ID stored in ctx, or a
// fresh one.
func (a *App) Decode(ctx context.Context, name string, c *capture.Capture, dc tdm.Config, sink tdm.Sink) (tdm.Stats, error) {
	id := observe.RunID(ctx)
	if id == "" {
		id = observe.NewRunID()
		ctx = observe.WithRunID(ctx, id)
	}
	ctx, span := a.tracer.Start(ctx, "tdm.decode", trace.WithAttributes(
		attribute.String("tdm.run_id", id),
		attribute.String("tdm.source", name),
		attribute.Int("tdm.bits_per_sample", dc.BitsPerSample),
		attribute.String("tdm.clock_edge", string(dc.ClockEdge)),
	))
	defer span.End()
	log := observe.Logger(ctx)

	dec, err := tdm.NewDecoder(dc, tdm.WithLogger(log), tdm.WithObserver(a.metrics))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return tdm.Stats{}, err
	}
	if a.mirror != nil {
		sink = output.Tee(sink, a.mirror)
	}

	done := a.runs.start(id, name, dc, c.Len())
	defer done()

	stats, err := dec.Run(ctx, c.Source(), sink)
	span.SetAttributes(
		attribute.Int64("tdm.edges", stats.Edges),
		attribute.Int64("tdm.frames", stats.Frames),
		attribute.Int64("tdm.words", stats.Words),
		attribute.Bool("tdm.synchronized", stats.Synchronized),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("decode failed", "source", name, "err", err)
		return stats, err
	}
	log.Info("decode complete",
		"source", name,
		"samples", c.Len(),
		"words", stats.Words,
		"frames", stats.Frames,
	)
	return stats, nil
}

// Result is the outcome of decoding one capture file.
type Result struct {
	Path  string
	Words []tdm.Word
	Stats tdm.Stats
}

// DecodeFiles decodes every path concurrently with the active configuration
// and returns the results in argument order. The first failure cancels the
// remaining runs.
func (a *App) DecodeFiles(ctx context.Context, paths []string) ([]Result, error) {
	cfg := a.Config()
	dc, err := cfg.DecoderConfig()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			c, err := capture.Open(path, cfg.Capture.Format, cfg.Mapping())
			if err != nil {
				return err
			}
			var col output.Collector
			stats, err := a.Decode(gctx, path, c, dc, &col)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = Result{Path: path, Words: col.Words(), Stats: stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown closes the publisher and any other owned resources. It is safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers), "active_runs", a.runs.Len())

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Runs ────────────────────────────────────────────────────────────────────

// RunInfo describes a decode run in flight.
type RunInfo struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	BitsPerSample int       `json:"bits_per_sample"`
	ClockEdge     tdm.Edge  `json:"clock_edge"`
	Samples       int       `json:"samples"`
	StartedAt     time.Time `json:"started_at"`
}

// Runs tracks in-flight decode runs. All methods are safe for concurrent use.
type Runs struct {
	mu     sync.Mutex
	active map[string]RunInfo
}

func newRuns() *Runs {
	return &Runs{active: make(map[string]RunInfo)}
}

// start registers a run and returns the function that unregisters it.
func (r *Runs) start(id, source string, dc tdm.Config, samples int) func() {
	r.mu.Lock()
	r.active[id] = RunInfo{
		ID:            id,
		Source:        source,
		BitsPerSample: dc.BitsPerSample,
		ClockEdge:     dc.ClockEdge,
		Samples:       samples,
		StartedAt:     time.Now(),
	}
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.active, id)
		r.mu.Unlock()
	}
}

// Len returns the number of runs in flight.
func (r *Runs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// List returns the runs in flight, oldest first.
func (r *Runs) List() []RunInfo {
	r.mu.Lock()
	out := make([]RunInfo, 0, len(r.active))
	for _, info := range r.active {
		out = append(out, info)
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b RunInfo) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}
