// Package server exposes the scanner over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scanvui/backend/analyzer"
	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/logging"
	"github.com/scanvui/backend/middleware"
)

const (
	scanPath        = "/api/scan"
	maxRequestBytes = 10 << 20
)

// Scanner is the part of the analyzer service the API needs.
type Scanner interface {
	Analyze(ctx context.Context, url string) (*analyzer.Report, error)
	AnalyzeHTML(markup []byte, pageURL string) (*analyzer.Report, error)
	GetCacheStats() analyzer.CacheStats
}

// Options configures the API.
type Options struct {
	RatePerSecond float64
	RateBurst     int
	ScanTimeout   time.Duration
	Logger        *slog.Logger
}

// Server is the gin API in front of a Scanner.
type Server struct {
	scanner Scanner
	stats   *logging.Statistics
	limiter *middleware.RateLimiter
	logger  *slog.Logger
	timeout time.Duration
	engine  *gin.Engine
}

// New wires routes and middleware.
func New(scanner Scanner, stats *logging.Statistics, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 30 * time.Second
	}

	s := &Server{
		scanner: scanner,
		stats:   stats,
		limiter: middleware.NewRateLimiter(opts.RatePerSecond, opts.RateBurst),
		logger:  opts.Logger,
		timeout: opts.ScanTimeout,
		engine:  gin.New(),
	}

	r := s.engine
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(s.logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.StatsMiddleware(stats, scanPath, s.logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.POST("/scan", s.limiter.RateLimit(), s.scan)
		api.GET("/statistics", s.statistics)
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limiter.Prune()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) health(c *gin.Context) {
	s.logger.Debug("health check", "client", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

type scanRequest struct {
	URL     string `json:"url" binding:"omitempty,url"`
	HTML    string `json:"html"`
	PageURL string `json:"pageUrl" binding:"omitempty,url"`
}

func (s *Server) scan(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scan request"})
		return
	}

	var (
		report *analyzer.Report
		err    error
	)
	switch {
	case req.URL != "":
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only http and https URLs can be scanned"})
			return
		}
		c.Set(middleware.ScanTargetKey, req.URL)

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		report, err = s.scanner.Analyze(ctx, req.URL)
	case strings.TrimSpace(req.HTML) != "":
		report, err = s.scanner.AnalyzeHTML([]byte(req.HTML), req.PageURL)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either url or html is required"})
		return
	}

	if err != nil {
		status := statusFor(err)
		s.logger.Warn("scan failed", "requestId", middleware.RequestIDFrom(c), "status", status, "error", err)
		c.JSON(status, gin.H{"error": "Failed to scan page: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func statusFor(err error) int {
	var fetchErr *analyzer.FetchError
	switch {
	case errors.Is(err, dom.ErrNoDocument):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) statistics(c *gin.Context) {
	out := s.stats.GetStatistics()
	out["cache"] = s.scanner.GetCacheStats()
	c.JSON(http.StatusOK, out)
}
