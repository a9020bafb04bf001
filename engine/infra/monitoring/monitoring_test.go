package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/infra/monitoring/middleware"
	"github.com/liftwise/coachgate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitoringService(t *testing.T) {
	t.Run("Should default to a disabled service when config is nil", func(t *testing.T) {
		service, err := NewMonitoringService(t.Context(), nil)
		require.NoError(t, err)
		assert.False(t, service.IsInitialized())
		assert.Equal(t, "/metrics", service.Path())
		assert.NotNil(t, service.Meter())
	})

	t.Run("Should fail with an invalid path", func(t *testing.T) {
		for _, path := range []string{"", "metrics", "/api/metrics", "/metrics?x=1"} {
			_, err := NewMonitoringService(t.Context(), &config.MonitoringConfig{Enabled: true, Path: path})
			assert.Error(t, err, path)
		}
	})

	t.Run("Should initialize the Prometheus exporter when enabled", func(t *testing.T) {
		service, err := NewMonitoringService(t.Context(), &config.MonitoringConfig{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		assert.True(t, service.IsInitialized())
		assert.NotNil(t, service.exporter)
		assert.NoError(t, service.Shutdown(t.Context()))
	})
}

func TestMonitoringService_ExporterHandler(t *testing.T) {
	t.Run("Should return 503 when not initialized", func(t *testing.T) {
		service, err := NewMonitoringService(t.Context(), &config.MonitoringConfig{Path: "/metrics"})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		service.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("Should expose recorded HTTP metrics", func(t *testing.T) {
		ResetSystemMetricsForTesting()
		middleware.ResetMetricsForTesting()
		t.Cleanup(middleware.ResetMetricsForTesting)
		service, err := NewMonitoringService(t.Context(), &config.MonitoringConfig{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(service.GinMiddleware(t.Context()))
		router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

		w := httptest.NewRecorder()
		service.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Contains(t, w.Body.String(), "coachgate_build_info")
		assert.Contains(t, w.Body.String(), "coachgate_http_requests_total")
	})
}

func TestNewMonitoringServiceWithFallback(t *testing.T) {
	t.Run("Should degrade to no-op on invalid config", func(t *testing.T) {
		service := NewMonitoringServiceWithFallback(t.Context(), &config.MonitoringConfig{Enabled: true, Path: "bad"})
		assert.False(t, service.IsInitialized())
		assert.Error(t, service.InitializationError())
		assert.NotNil(t, service.Meter())
	})
}
