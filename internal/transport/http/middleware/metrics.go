package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/devlife/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records latency and counts per route template. Requests under /cli are
// labelled client="cli", everything else client="web".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		labels := []string{
			clientOf(c.Request.URL.Path),
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		}

		metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
	}
}

func clientOf(path string) string {
	if path == "/cli" || strings.HasPrefix(path, "/cli/") {
		return "cli"
	}
	return "web"
}
