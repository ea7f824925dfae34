package observe

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// Resource attribute keys describing the decoder a process was started with.
const (
	AttrBitsPerSample = attribute.Key("tdm.bits_per_sample")
	AttrClockEdge     = attribute.Key("tdm.clock_edge")
	AttrCaptureFormat = attribute.Key("tdm.capture_format")
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "tdmdecode".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// Decoder is the startup decoder configuration. Its word width and clock
	// edge are attached to the resource so scraped series can be told apart
	// when several decoders watch different buses.
	Decoder tdm.Config

	// CaptureFormat is the configured capture format, e.g. "csv".
	CaptureFormat string

	// Registerer receives the Prometheus collector. Defaults to
	// prometheus.DefaultRegisterer, which is what promhttp.Handler serves.
	Registerer prometheus.Registerer

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded but not exported.
	TraceExporter sdktrace.SpanExporter
}

// DecoderAttributes returns the resource attributes for a decoder
// configuration. Zero fields are omitted.
func DecoderAttributes(dc tdm.Config, captureFormat string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if dc.BitsPerSample > 0 {
		attrs = append(attrs, AttrBitsPerSample.String(strconv.Itoa(dc.BitsPerSample)))
	}
	if dc.ClockEdge != "" {
		attrs = append(attrs, AttrClockEdge.String(string(dc.ClockEdge)))
	}
	if captureFormat != "" {
		attrs = append(attrs, AttrCaptureFormat.String(captureFormat))
	}
	return attrs
}

// Provider holds the SDK meter and tracer providers built by [NewProvider].
type Provider struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// NewProvider builds a meter provider that exports through Prometheus and a
// tracer provider using cfg.TraceExporter. Nothing is registered globally;
// see [InitProvider].
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tdmdecode"
	}

	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}, DecoderAttributes(cfg.Decoder, cfg.CaptureFormat)...)

	// Schemaless so the merge never conflicts with the SDK default schema.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, err
	}

	var promOpts []promexporter.Option
	if cfg.Registerer != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(cfg.Registerer))
	}
	promExp, err := promexporter.New(promOpts...)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	return &Provider{MeterProvider: mp, TracerProvider: tp}, nil
}

// Shutdown flushes and closes both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.MeterProvider.Shutdown(ctx), p.TracerProvider.Shutdown(ctx))
}

// InitProvider builds the providers with [NewProvider] and registers them as
// the global OTel providers. Call the returned shutdown function in a defer
// from main().
func InitProvider(_ context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(p.MeterProvider)
	otel.SetTracerProvider(p.TracerProvider)
	return p.Shutdown, nil
}
