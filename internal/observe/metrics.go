// Package observe provides application-wide observability primitives for
// parley: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all parley metrics.
const meterName = "github.com/MrWong99/parley"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Capture / send path ---

	// FramesCaptured counts frames emitted by the frame processor.
	FramesCaptured metric.Int64Counter

	// ChunksSent counts audio chunks handed to the transport.
	ChunksSent metric.Int64Counter

	// SendsSuppressed counts chunks dropped because no session was live.
	SendsSuppressed metric.Int64Counter

	// --- Receive / playback path ---

	// ChunksReceived counts assistant audio chunks from the service.
	ChunksReceived metric.Int64Counter

	// DecodeErrors counts chunks that could not be decoded and were skipped.
	DecodeErrors metric.Int64Counter

	// ScheduleErrors counts buffers the audio sink refused.
	ScheduleErrors metric.Int64Counter

	// --- Turn-taking ---

	// BargeIns counts playback suspensions caused by the user speaking.
	BargeIns metric.Int64Counter

	// Resumes counts playback resumptions after the user went silent.
	Resumes metric.Int64Counter

	// --- Sessions ---

	// ActiveSessions tracks the number of live sessions (0 or 1 per process).
	ActiveSessions metric.Int64UpDownCounter

	// SessionStarts counts Start attempts. Use with attribute:
	//   attribute.String("status", "ok"|"auth"|"connection"|"device"|"cancelled"|"error")
	SessionStarts metric.Int64Counter

	// SessionStartDuration tracks how long Start takes to reach Active.
	SessionStartDuration metric.Float64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks control API request time, labelled with
	// method, route pattern and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) tuned for
// connection setup and device opening.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.FramesCaptured, "parley.frames.captured", "Total audio frames emitted by the frame processor."},
		{&met.ChunksSent, "parley.chunks.sent", "Total audio chunks sent to the service."},
		{&met.SendsSuppressed, "parley.chunks.suppressed", "Total audio chunks dropped because no session was live."},
		{&met.ChunksReceived, "parley.chunks.received", "Total assistant audio chunks received."},
		{&met.DecodeErrors, "parley.decode.errors", "Total assistant audio chunks skipped because they failed to decode."},
		{&met.ScheduleErrors, "parley.schedule.errors", "Total audio buffers the playback sink refused."},
		{&met.BargeIns, "parley.turn.barge_ins", "Total playback suspensions caused by user speech."},
		{&met.Resumes, "parley.turn.resumes", "Total playback resumptions after user silence."},
		{&met.SessionStarts, "parley.session.starts", "Total session start attempts by status."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("parley.active_sessions",
		metric.WithDescription("Number of live sessions."),
	); err != nil {
		return nil, err
	}

	if met.SessionStartDuration, err = m.Float64Histogram("parley.session.start.duration",
		metric.WithDescription("Latency from Start to an active session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSessionStart records a start attempt with its outcome and, for
// successful starts, its latency in seconds.
func (m *Metrics) RecordSessionStart(ctx context.Context, status string, seconds float64) {
	m.SessionStarts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status == "ok" {
		m.SessionStartDuration.Record(ctx, seconds)
	}
}

// RecordSend records one outbound chunk, either sent or suppressed.
func (m *Metrics) RecordSend(ctx context.Context, sent bool) {
	if sent {
		m.ChunksSent.Add(ctx, 1)
		return
	}
	m.SendsSuppressed.Add(ctx, 1)
}
