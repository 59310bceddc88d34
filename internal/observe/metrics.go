// Package observe provides observability primitives for InsightDebateBot:
// OpenTelemetry metrics with a Prometheus exporter bridge, and the HTTP
// endpoint that exposes them together with health checks.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/NagataYushi0222/InsightDebateBot"

// Cycle outcome values for the "outcome" metric attribute.
const (
	OutcomeReported = "reported"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// CycleDuration tracks wall time of one full analysis cycle, drain to
	// delivered report.
	CycleDuration metric.Float64Histogram

	// AnalyzeDuration tracks latency of a single analysis-service call.
	AnalyzeDuration metric.Float64Histogram

	// Cycles counts finished cycles. Use with attributes:
	//   attribute.String("outcome", ...), attribute.String("trigger", ...)
	Cycles metric.Int64Counter

	// AnalyzeRetries counts retried analysis calls.
	AnalyzeRetries metric.Int64Counter

	// ReportsPosted counts delivered reports. Use with attributes:
	//   attribute.String("mode", ...), attribute.Bool("final", ...)
	ReportsPosted metric.Int64Counter

	// DroppedAudio accumulates seconds of buffered audio evicted before it
	// could be analysed.
	DroppedAudio metric.Float64Counter

	// ActiveSessions tracks the number of live recording sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// analysisBuckets defines histogram bucket boundaries (in seconds) sized for
// multimodal analysis calls, which run seconds to minutes.
var analysisBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 240,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CycleDuration, err = m.Float64Histogram("insightbot.cycle.duration",
		metric.WithDescription("Wall time of one analysis cycle, drain to delivery."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeDuration, err = m.Float64Histogram("insightbot.analyze.duration",
		metric.WithDescription("Latency of a single analysis-service call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Cycles, err = m.Int64Counter("insightbot.cycles",
		metric.WithDescription("Finished analysis cycles by outcome and trigger."),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeRetries, err = m.Int64Counter("insightbot.analyze.retries",
		metric.WithDescription("Retried analysis-service calls."),
	); err != nil {
		return nil, err
	}
	if met.ReportsPosted, err = m.Int64Counter("insightbot.reports.posted",
		metric.WithDescription("Delivered reports by mode and finality."),
	); err != nil {
		return nil, err
	}
	if met.DroppedAudio, err = m.Float64Counter("insightbot.audio.dropped",
		metric.WithDescription("Seconds of buffered audio evicted before analysis."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("insightbot.active_sessions",
		metric.WithDescription("Number of live recording sessions."),
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

// RecordCycle records one finished cycle with its outcome, trigger source
// ("interval" or "manual") and duration.
func (m *Metrics) RecordCycle(ctx context.Context, outcome, trigger string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("trigger", trigger),
	)
	m.Cycles.Add(ctx, 1, attrs)
	m.CycleDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordAnalyze records one analysis-service call.
func (m *Metrics) RecordAnalyze(ctx context.Context, provider, status string, d time.Duration) {
	m.AnalyzeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordReport records one delivered report.
func (m *Metrics) RecordReport(ctx context.Context, mode string, final bool) {
	m.ReportsPosted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("final", final),
	))
}
