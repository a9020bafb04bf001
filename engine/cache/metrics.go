package cache

import (
	"context"
	"sync"

	"github.com/liftwise/coachgate/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	opGet        = "get"
	opSet        = "set"
	opDelete     = "delete"
	resultHit    = "hit"
	resultLocal  = "hit_local"
	resultMiss   = "miss"
	resultOK     = "ok"
	resultError  = "error"
	resultSkip   = "skipped"
	meterName    = "coachgate.cache"
	metricSubsys = "cache"
)

var (
	metricsOnce    sync.Once
	metricsMu      sync.Mutex
	metricsInitErr error
	opsCounter     metric.Int64Counter
)

func recordOperation(ctx context.Context, domain, op, result string) {
	if err := ensureMetrics(); err != nil || opsCounter == nil {
		return
	}
	opsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

func ensureMetrics() error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		opsCounter, metricsInitErr = meter.Int64Counter(
			metrics.MetricNameWithSubsystem(metricSubsys, "operations_total"),
			metric.WithDescription("Cache operations by domain, operation and result"),
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
	opsCounter = nil
	metricsMu.Unlock()
}
