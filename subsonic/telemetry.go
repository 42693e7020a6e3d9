package subsonic

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/briangreenhill/subsonic"

type telemetry struct {
	tracer trace.Tracer

	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	cache    metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(DefaultProtocolVersion))
	t := &telemetry{
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(DefaultProtocolVersion)),
	}

	// Instrument creation only fails on invalid names; the noop fallbacks
	// returned alongside the error are still usable.
	t.requests, _ = meter.Int64Counter(
		"subsonic.client.requests",
		metric.WithDescription("Total number of Subsonic requests sent"),
		metric.WithUnit("{request}"),
	)
	t.errors, _ = meter.Int64Counter(
		"subsonic.client.errors",
		metric.WithDescription("Total number of failed Subsonic requests"),
		metric.WithUnit("{error}"),
	)
	t.duration, _ = meter.Float64Histogram(
		"subsonic.client.request.duration",
		metric.WithDescription("Duration of Subsonic requests"),
		metric.WithUnit("ms"),
	)
	t.cache, _ = meter.Int64Counter(
		"subsonic.client.cache",
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	return t
}

// start opens the span for one request and counts it.
func (t *telemetry) start(ctx context.Context, endpoint, requestID string) (context.Context, trace.Span, time.Time) {
	ctx, span := t.tracer.Start(ctx, "subsonic."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("subsonic.endpoint", endpoint),
			attribute.String("subsonic.request_id", requestID),
		),
	)
	t.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("subsonic.endpoint", endpoint)))
	return ctx, span, time.Now()
}

// finish records the outcome and ends span.
func (t *telemetry) finish(ctx context.Context, span trace.Span, started time.Time, endpoint string, status int, err error) {
	defer span.End()

	attrs := []attribute.KeyValue{attribute.String("subsonic.endpoint", endpoint)}
	t.duration.Record(ctx, float64(time.Since(started).Milliseconds()), metric.WithAttributes(attrs...))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	case status < 200 || status > 299:
		span.SetStatus(codes.Error, "non-success status")
		t.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	default:
		span.SetStatus(codes.Ok, "")
	}
}

func (t *telemetry) cacheLookup(ctx context.Context, endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	t.cache.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subsonic.endpoint", endpoint),
		attribute.String("result", result),
	))
}
