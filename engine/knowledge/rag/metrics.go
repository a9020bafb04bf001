package rag

import (
	"context"
	"sync"
	"time"

	"github.com/liftwise/coachgate/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultPartial  = "partial"
	resultDegraded = "degraded"
	resultInvalid  = "invalid"
)

var (
	metricsOnce       sync.Once
	metricsMu         sync.Mutex
	metricsInitErr    error
	requestCounter    metric.Int64Counter
	retrievalDuration metric.Float64Histogram
)

func recordRequest(ctx context.Context, endpoint, result string) {
	if err := ensureMetrics(); err != nil || requestCounter == nil {
		return
	}
	requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("result", result),
	))
}

func recordRetrievalDuration(ctx context.Context, endpoint string, d time.Duration) {
	if err := ensureMetrics(); err != nil || retrievalDuration == nil {
		return
	}
	retrievalDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

func ensureMetrics() error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("coachgate.knowledge.rag")
		requestCounter, metricsInitErr = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("rag", "context_requests_total"),
			metric.WithDescription("Context retrieval requests by endpoint and result"),
		)
		if metricsInitErr != nil {
			return
		}
		retrievalDuration, metricsInitErr = meter.Float64Histogram(
			metrics.MetricNameWithSubsystem("rag", "retrieval_duration_seconds"),
			metric.WithDescription("Duration of the per-namespace retrieval fan-out"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(metrics.RetrievalDurationBuckets...),
		)
	})
	return metricsInitErr
}

// ResetMetricsForTesting drops the instruments so the next call binds to the
// current global meter provider.
func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	requestCounter = nil
	retrievalDuration = nil
	metricsMu.Unlock()
}
