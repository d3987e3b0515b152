package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hookrelay/hookrelay/sender"
)

// meterName is the instrumentation scope name for hookrelay metrics.
const meterName = "github.com/hookrelay/hookrelay"

// Metrics returns middleware that records per-send metrics using the
// global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - hookrelay.send.duration (Float64Histogram): send time in seconds,
//     with attributes: target, status ("ok" or "error")
//   - hookrelay.sends (Int64Counter): total send attempts,
//     with attributes: target, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"hookrelay.send.duration",
		metric.WithDescription("Duration of callback sends in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	sends, sErr := meter.Int64Counter(
		"hookrelay.sends",
		metric.WithDescription("Total number of callback send attempts"),
		metric.WithUnit("{send}"),
	)
	_ = sErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, d *sender.Delivery, next SendFunc) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("target", d.Target),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		sends.Add(ctx, 1, attrs)

		return err
	}
}
