// Package observe provides application-wide observability primitives for
// tdmdecode: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// meterName is the instrumentation scope name used for all tdmdecode metrics.
const meterName = "github.com/MrWong99/tdmdecode"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
//
// *Metrics implements [tdm.Observer] and can be attached to a decoder with
// [tdm.WithObserver].
type Metrics struct {
	// --- Counters ---

	// Edges counts active clock edges consumed by the decoder.
	Edges metric.Int64Counter

	// Frames counts frame-sync pulses (0→1 transitions of the frame line).
	Frames metric.Int64Counter

	// Words counts decoded channel words.
	Words metric.Int64Counter

	// --- Latency histograms ---

	// DecodeDuration tracks the wall time of one decode run. Use with attribute:
	//   attribute.Bool("synchronized", ...)
	DecodeDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveDecodes tracks the number of decode runs currently in flight.
	ActiveDecodes metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

var _ tdm.Observer = (*Metrics)(nil)

// latencyBuckets defines histogram bucket boundaries (in seconds). Captures
// range from a handful of frames to multi-minute logic analyser dumps.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.Edges, err = m.Int64Counter("tdm.edges",
		metric.WithDescription("Total active clock edges consumed."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("tdm.frames",
		metric.WithDescription("Total frame-sync pulses seen."),
	); err != nil {
		return nil, err
	}
	if met.Words, err = m.Int64Counter("tdm.words",
		metric.WithDescription("Total channel words decoded."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.DecodeDuration, err = m.Float64Histogram("tdm.decode.duration",
		metric.WithDescription("Wall time of a single decode run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDecodes, err = m.Int64UpDownCounter("tdm.active_decodes",
		metric.WithDescription("Number of decode runs in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("tdm.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// DecodeStarted marks a decode run as in flight.
func (m *Metrics) DecodeStarted(ctx context.Context) {
	m.ActiveDecodes.Add(ctx, 1)
}

// DecodeFinished records the counters and duration of a completed run and
// clears its in-flight mark.
func (m *Metrics) DecodeFinished(ctx context.Context, stats tdm.Stats, elapsed time.Duration) {
	m.ActiveDecodes.Add(ctx, -1)
	m.Edges.Add(ctx, stats.Edges)
	m.Frames.Add(ctx, stats.Frames)
	m.Words.Add(ctx, stats.Words)
	m.DecodeDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.Bool("synchronized", stats.Synchronized)),
	)
}
