package ratelimit

import (
	"context"
	"sync"

	"github.com/liftwise/coachgate/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeAllowed   = "allowed"
	outcomeRejected  = "rejected"
	outcomeDegraded  = "degraded"
	outcomeUnlimited = "unlimited"
)

var (
	metricsOnce      sync.Once
	metricsMu        sync.Mutex
	metricsInitErr   error
	decisionsCounter metric.Int64Counter
)

func recordDecision(ctx context.Context, tier string, class Class, outcome string) {
	if err := ensureMetrics(); err != nil || decisionsCounter == nil {
		return
	}
	decisionsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("class", string(class)),
		attribute.String("outcome", outcome),
	))
}

func ensureMetrics() error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("coachgate.ratelimit")
		decisionsCounter, metricsInitErr = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("rate_limit", "decisions_total"),
			metric.WithDescription("Rate limit decisions by tier, class and outcome"),
		)
	})
	return metricsInitErr
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	decisionsCounter = nil
	metricsMu.Unlock()
}
