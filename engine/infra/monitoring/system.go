package monitoring

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/liftwise/coachgate/engine/infra/monitoring/metrics"
	"github.com/liftwise/coachgate/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Set via -ldflags "-X github.com/liftwise/coachgate/engine/infra/monitoring.Version=..."
var (
	Version    = "unknown"
	CommitHash = "unknown"
)

const unknownBuild = "unknown"

type systemInstruments struct {
	buildInfo    metric.Float64Gauge
	registration metric.Registration
	startedAt    time.Time
}

var (
	system     *systemInstruments
	systemOnce sync.Once
	systemMu   sync.Mutex
)

func newSystemInstruments(ctx context.Context, meter metric.Meter) *systemInstruments {
	log := logger.FromContext(ctx)
	s := &systemInstruments{startedAt: time.Now()}
	var err error
	s.buildInfo, err = meter.Float64Gauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		log.Error("Failed to create build info gauge", "error", err)
	}
	uptime, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Seconds since the process started serving"),
	)
	if err != nil {
		log.Error("Failed to create uptime gauge", "error", err)
		return s
	}
	goroutines, err := meter.Int64ObservableGauge(
		metrics.MetricName("goroutines"),
		metric.WithDescription("Live goroutines"),
	)
	if err != nil {
		log.Error("Failed to create goroutine gauge", "error", err)
		return s
	}
	s.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(uptime, time.Since(s.startedAt).Seconds())
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		return nil
	}, uptime, goroutines)
	if err != nil {
		log.Error("Failed to register system metrics callback", "error", err)
	}
	return s
}

// getBuildInfo prefers ldflags values and falls back to the module build info.
func getBuildInfo() (version, commit, goVersion string) {
	version, commit = Version, CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == unknownBuild && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			if commit == unknownBuild && s.Key == "vcs.revision" {
				commit = s.Value
			}
		}
	}
	return version, commit, runtime.Version()
}

// InitSystemMetrics registers the process gauges once and records build info.
func InitSystemMetrics(ctx context.Context, meter metric.Meter) {
	systemMu.Lock()
	systemOnce.Do(func() { system = newSystemInstruments(ctx, meter) })
	s := system
	systemMu.Unlock()
	if s == nil || s.buildInfo == nil {
		return
	}
	version, commit, goVersion := getBuildInfo()
	s.buildInfo.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("commit_hash", commit),
		attribute.String("go_version", goVersion),
	))
	logger.FromContext(ctx).Debug("System metrics initialized", "version", version, "commit", commit)
}

// ResetSystemMetricsForTesting drops the registered gauges so a test can
// install them on a fresh meter.
func ResetSystemMetricsForTesting() {
	systemMu.Lock()
	defer systemMu.Unlock()
	if system != nil && system.registration != nil {
		_ = system.registration.Unregister()
	}
	system = nil
	systemOnce = sync.Once{}
}
