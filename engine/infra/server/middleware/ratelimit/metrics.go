package ratelimit

import (
	"context"
	"sync"

	"github.com/liftwise/coachgate/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	rateLimitBlocksTotal metric.Int64Counter
	metricsOnce          sync.Once
	metricsMu            sync.Mutex
	metricsInitErr       error
)

func ensureMetrics() error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("coachgate.ratelimit.middleware")
		rateLimitBlocksTotal, metricsInitErr = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("rate_limit", "blocks_total"),
			metric.WithDescription("Total number of requests blocked by rate limiting"),
			metric.WithUnit("1"),
		)
	})
	return metricsInitErr
}

// IncrementBlockedRequests counts one rejected request.
func IncrementBlockedRequests(ctx context.Context, route, tier, class string) {
	if err := ensureMetrics(); err != nil || rateLimitBlocksTotal == nil {
		return
	}
	rateLimitBlocksTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("tier", tier),
			attribute.String("class", class),
		),
	)
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	rateLimitBlocksTotal = nil
	metricsMu.Unlock()
}
