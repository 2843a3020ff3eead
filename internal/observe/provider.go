package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Resource attribute keys describing the audio pipeline a client runs.
const (
	AttrTransport    = attribute.Key("parley.transport")
	AttrAudioBackend = attribute.Key("parley.audio.backend")
	AttrCaptureRate  = attribute.Key("parley.audio.capture_rate")
	AttrPlaybackRate = attribute.Key("parley.audio.playback_rate")
)

// ProviderConfig describes the client for its telemetry resource.
type ProviderConfig struct {
	// ServiceName defaults to "parley".
	ServiceName    string
	ServiceVersion string

	// Transport and AudioBackend name the registered backends in use.
	Transport    string
	AudioBackend string

	// CaptureRate and PlaybackRate are the pipeline sample rates in Hz.
	// Zero omits the attribute.
	CaptureRate  int
	PlaybackRate int

	// Registerer receives the Prometheus collectors. Nil means the default
	// registerer, which promhttp.Handler serves.
	Registerer prometheus.Registerer

	// TraceExporter is optional. Without one spans are recorded for log
	// correlation but never leave the process.
	TraceExporter sdktrace.SpanExporter
}

func (c ProviderConfig) resource() (*resource.Resource, error) {
	name := c.ServiceName
	if name == "" {
		name = "parley"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceInstanceID(uuid.NewString()),
	}
	if c.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(c.ServiceVersion))
	}
	if c.Transport != "" {
		attrs = append(attrs, AttrTransport.String(c.Transport))
	}
	if c.AudioBackend != "" {
		attrs = append(attrs, AttrAudioBackend.String(c.AudioBackend))
	}
	if c.CaptureRate > 0 {
		attrs = append(attrs, AttrCaptureRate.Int(c.CaptureRate))
	}
	if c.PlaybackRate > 0 {
		attrs = append(attrs, AttrPlaybackRate.Int(c.PlaybackRate))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

// Providers holds the SDK providers built by [NewProviders].
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.Meter.Shutdown(ctx), p.Tracer.Shutdown(ctx))
}

// NewProviders builds a meter provider bridged to Prometheus and a tracer
// provider, both tagged with the client resource. Nothing is installed
// globally.
func NewProviders(cfg ProviderConfig) (*Providers, error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	var promOpts []promexporter.Option
	if cfg.Registerer != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(cfg.Registerer))
	}
	promExp, err := promexporter.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: create prometheus exporter: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}

	return &Providers{
		Meter:  sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(promExp)),
		Tracer: sdktrace.NewTracerProvider(tpOpts...),
	}, nil
}

// InitProvider builds the providers and installs them as the global OTel
// providers, which [DefaultMetrics] and [Tracer] read. Call the returned
// shutdown from main.
func InitProvider(_ context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	p, err := NewProviders(cfg)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(p.Meter)
	otel.SetTracerProvider(p.Tracer)
	return p.Shutdown, nil
}
