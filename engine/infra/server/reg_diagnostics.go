package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/infra/server/appstate"
	"github.com/liftwise/coachgate/pkg/logger"
)

const (
	schemeHTTPS = "https"
	schemeHTTP  = "http"
)

func setupDiagnosticEndpoints(router *gin.Engine, version, prefixURL string, state *appstate.State) {
	router.GET("/", createRootHandler(version, prefixURL))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"data":    gin.H{"status": "ok", "version": version},
			"message": "Success",
		})
	})
	router.GET("/ready", createReadyHandler(version, state))
}

// createReadyHandler reports ready when the shared store answers a ping.
func createReadyHandler(version string, state *appstate.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := statusReady
		ready := true
		store := gin.H{"ready": true}
		if state == nil || state.Store == nil {
			ready = false
			store = gin.H{"ready": false, "error": "store not configured"}
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), readinessProbeTimeout)
			err := state.Store.HealthCheck(ctx)
			cancel()
			if err != nil {
				logger.FromContext(c.Request.Context()).Warn("Readiness probe failed", "error", err)
				ready = false
				store = gin.H{"ready": false, "error": err.Error()}
			}
		}
		code := http.StatusOK
		if !ready {
			status = statusNotReady
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"data": gin.H{
				"status":  status,
				"version": version,
				"ready":   ready,
				"store":   store,
			},
			"message": "Success",
		})
	}
}

func createRootHandler(version, prefixURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		baseURL := requestBaseURL(c.Request)
		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"name":        "coachgate",
				"version":     version,
				"description": "Tiered rate limiting and retrieval context caching for coaching AI endpoints",
				"endpoints": gin.H{
					"health":  baseURL + "/health",
					"ready":   baseURL + "/ready",
					"api":     baseURL + prefixURL,
					"docs":    baseURL + "/docs",
					"context": baseURL + prefixURL + "/rag/context",
				},
			},
			"message": "Success",
		})
	}
}

// requestBaseURL builds the scheme and host the caller used. Forwarded
// headers may carry a comma-separated chain; only the first hop counts.
// Anything but https reads as http, and an unparsable host reads as localhost.
func requestBaseURL(r *http.Request) string {
	scheme := schemeHTTP
	if proto := strings.ToLower(firstHop(r.Header.Get("X-Forwarded-Proto"))); proto != "" {
		if proto == schemeHTTPS {
			scheme = schemeHTTPS
		}
	} else if r.TLS != nil {
		scheme = schemeHTTPS
	}
	host := ""
	for _, candidate := range []string{r.Host, r.Header.Get("X-Forwarded-Host")} {
		hop := firstHop(candidate)
		if hop == "" {
			continue
		}
		if u, err := url.Parse("//" + hop); err == nil && u.Host != "" {
			host = u.Host
			break
		}
	}
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host
}

func firstHop(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
