package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scanvui/backend/logging"
	"github.com/scanvui/backend/metrics"
)

// ScanTargetKey is where the scan handler leaves the URL it scanned so the
// stats middleware can count it.
const ScanTargetKey = "scanTarget"

// StatsMiddleware tracks visitors and scan requests
func StatsMiddleware(stats *logging.Statistics, scanPath string, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()

		stats.TrackVisitor(c.ClientIP())

		c.Next()

		// Only track scan requests
		if c.FullPath() != scanPath || c.Request.Method != http.MethodPost {
			return
		}

		loadTime := float64(time.Since(start).Milliseconds())
		stats.TrackScan(c.GetString(ScanTargetKey), loadTime, c.Writer.Status() >= 400)

		// Save every 100 requests
		if stats.TotalRequests()%100 == 0 {
			go func() {
				if err := stats.Save(); err != nil {
					logger.Warn("failed to save request statistics", "error", err)
				}
			}()
		}
	}
}

// Metrics counts every request by method, matched route and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, route, c.Writer.Status())
	}
}

// CORS allows any origin to call the API
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
