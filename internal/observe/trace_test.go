package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func TestEndSpan(t *testing.T) {
	t.Parallel()

	tp, exp := newRecorder(t)
	tracer := tp.Tracer("test")

	_, ok := tracer.Start(context.Background(), SpanSessionStart)
	EndSpan(ok, nil)
	_, failed := tracer.Start(context.Background(), SpanSessionStart)
	EndSpan(failed, errors.New("microphone denied"))

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Unset {
		t.Errorf("ok span status = %v, want unset", spans[0].Status.Code)
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "microphone denied" {
		t.Errorf("failed span status = %+v", spans[1].Status)
	}
	if len(spans[1].Events) == 0 {
		t.Error("failed span has no recorded error event")
	}
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	tp, _ := newRecorder(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), SpanSessionStop)
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 || strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("CorrelationID = %q, want 32 hex chars", cid)
	}
}

func TestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil)).With("component", "session")

	Logger(context.Background(), base).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("trace_id without a span: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "component=session") {
		t.Errorf("base attributes lost: %s", buf.String())
	}

	buf.Reset()
	tp, _ := newRecorder(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), SpanSessionStart)
	defer span.End()
	Logger(ctx, base).Info("with span")

	out := buf.String()
	for _, want := range []string{"trace_id=", "span_id=", "component=session"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
