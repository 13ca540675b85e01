// Package analyzer assembles scan reports and runs the scanning service: it
// fetches pages, scans them, caches reports and keeps statistics.
package analyzer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/fetcher"
	"github.com/scanvui/backend/metrics"
	"github.com/scanvui/backend/stats"
)

// Cache entry with expiration
type cacheEntry struct {
	report    *Report
	timestamp time.Time
}

// CacheStats provides statistics about the analyzer's cache
type CacheStats struct {
	Entries  int           `json:"entries"`
	MaxSize  int           `json:"maxSize"`
	Hits     int           `json:"hits"`
	Misses   int           `json:"misses"`
	CacheTTL time.Duration `json:"cacheTTL"`
}

// Analyzer fetches and scans pages
type Analyzer struct {
	fetcher         fetcher.Fetcher
	logger          *slog.Logger
	cache           map[string]cacheEntry
	cacheMutex      sync.RWMutex
	cacheTTL        time.Duration
	maxCacheSize    int
	lastCleanup     time.Time
	cleanupInterval time.Duration
	cleaning        atomic.Bool
	stats           *stats.Storage
	done            chan struct{}
	closeOnce       sync.Once
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFetcher sets the page source. The default is a plain HTTP fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(a *Analyzer) {
		if f != nil {
			a.fetcher = f
		}
	}
}

// WithServiceLogger sets the logger for the service and the scans it runs.
func WithServiceLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCacheTTL sets how long a report is served from cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Analyzer) {
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

// New creates a new Analyzer keeping its statistics under dataDir
func New(dataDir string, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		logger:          slog.Default(),
		cache:           make(map[string]cacheEntry),
		cacheTTL:        30 * time.Minute,
		maxCacheSize:    1000,
		cleanupInterval: 5 * time.Minute,
		lastCleanup:     time.Now(),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fetcher == nil {
		a.fetcher = fetcher.NewHTTPFetcher(fetcher.Options{Logger: a.logger})
	}

	statsStorage, err := stats.NewStorage(dataDir, stats.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stats storage: %w", err)
	}
	a.stats = statsStorage

	go a.periodicCleanup()

	return a, nil
}

// periodicCleanup removes expired entries until Shutdown
func (a *Analyzer) periodicCleanup() {
	ticker := time.NewTicker(a.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.cleanup()
		case <-a.done:
			return
		}
	}
}

// cleanup removes expired entries and enforces the size limit
func (a *Analyzer) cleanup() {
	a.cacheMutex.Lock()
	defer a.cacheMutex.Unlock()
	a.cleanupLocked()
}

func (a *Analyzer) cleanupLocked() {
	now := time.Now()
	for key, entry := range a.cache {
		if now.Sub(entry.timestamp) > a.cacheTTL {
			delete(a.cache, key)
		}
	}

	// If still over size limit, remove oldest entries
	if len(a.cache) > a.maxCacheSize {
		type aged struct {
			key       string
			timestamp time.Time
		}
		entries := make([]aged, 0, len(a.cache))
		for key, entry := range a.cache {
			entries = append(entries, aged{key, entry.timestamp})
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].timestamp.Before(entries[j].timestamp)
		})

		for i := 0; i < len(entries)-a.maxCacheSize; i++ {
			delete(a.cache, entries[i].key)
		}
	}

	a.lastCleanup = now
}

// SetMaxCacheSize sets the maximum number of cached reports
func (a *Analyzer) SetMaxCacheSize(size int) {
	a.cacheMutex.Lock()
	defer a.cacheMutex.Unlock()
	a.maxCacheSize = size
	a.cleanupLocked() // shrink right away if the new size is smaller
}

// SetCacheTTL sets the cache TTL
func (a *Analyzer) SetCacheTTL(ttl time.Duration) {
	a.cacheMutex.Lock()
	defer a.cacheMutex.Unlock()
	a.cacheTTL = ttl
}

// ClearCache clears the report cache
func (a *Analyzer) ClearCache() {
	a.cacheMutex.Lock()
	defer a.cacheMutex.Unlock()
	a.cache = make(map[string]cacheEntry)
}

// generateCacheKey creates a unique key for the URL
func generateCacheKey(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

// GetCacheStats returns statistics about the cache
func (a *Analyzer) GetCacheStats() CacheStats {
	current := a.stats.GetCurrentStats()

	a.cacheMutex.RLock()
	defer a.cacheMutex.RUnlock()

	return CacheStats{
		Entries:  len(a.cache),
		MaxSize:  a.maxCacheSize,
		Hits:     current.CacheHits,
		Misses:   current.CacheMisses,
		CacheTTL: a.cacheTTL,
	}
}

// IsCached checks if a URL is in the cache and not expired
func (a *Analyzer) IsCached(url string) bool {
	a.cacheMutex.RLock()
	defer a.cacheMutex.RUnlock()

	entry, found := a.cache[generateCacheKey(url)]
	return found && time.Since(entry.timestamp) < a.cacheTTL
}

func (a *Analyzer) cached(key string) (*Report, bool) {
	a.cacheMutex.RLock()
	defer a.cacheMutex.RUnlock()

	entry, found := a.cache[key]
	if !found || time.Since(entry.timestamp) >= a.cacheTTL {
		return nil, false
	}
	return entry.report, true
}

// maybeCleanup starts a cleanup when one is due and none is running. It
// reports whether it started one.
func (a *Analyzer) maybeCleanup() bool {
	if time.Since(a.lastCleanupTime()) <= a.cleanupInterval {
		return false
	}
	if !a.cleaning.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer a.cleaning.Store(false)
		a.cleanup()
	}()
	return true
}

// Analyze fetches url and scans it. Fresh reports are served from cache;
// every caller gets its own copy.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*Report, error) {
	a.maybeCleanup()

	cacheKey := generateCacheKey(url)
	if report, ok := a.cached(cacheKey); ok {
		a.stats.IncrementCache(1, 0)
		metrics.RecordResult(metrics.ResultCached)
		return report.Clone(), nil
	}
	a.stats.IncrementCache(0, 1)

	page, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		a.stats.RecordScan(stats.ScanResult{Failed: true})
		metrics.RecordResult(metrics.ResultFetchError)
		return nil, &FetchError{URL: url, Err: err}
	}

	report, err := a.scan(page.Body, page.URL)
	if err != nil {
		return nil, err
	}

	a.cacheMutex.Lock()
	a.cache[cacheKey] = cacheEntry{report: report, timestamp: time.Now()}
	a.cacheMutex.Unlock()

	return report.Clone(), nil
}

// AnalyzeHTML scans markup supplied by the caller. pageURL is the location
// the markup claims to come from and may be empty. Nothing is cached.
func (a *Analyzer) AnalyzeHTML(markup []byte, pageURL string) (*Report, error) {
	return a.scan(markup, pageURL)
}

func (a *Analyzer) scan(markup []byte, pageURL string) (*Report, error) {
	doc, err := dom.Parse(bytes.NewReader(markup), pageURL)
	if err != nil {
		a.stats.RecordScan(stats.ScanResult{Failed: true})
		metrics.RecordResult(metrics.ResultError)
		return nil, err
	}

	report, err := Scan(doc, WithLogger(a.logger))
	if err != nil {
		a.stats.RecordScan(stats.ScanResult{Failed: true})
		if errors.Is(err, dom.ErrNoDocument) {
			metrics.RecordResult(metrics.ResultNoDocument)
		} else {
			metrics.RecordResult(metrics.ResultError)
		}
		return nil, err
	}

	a.stats.RecordScan(stats.ScanResult{
		Fields:            report.TotalFieldCount,
		BoundaryCrossings: report.BoundaryCrossingCount,
	})
	d := report.Diagnostics
	metrics.RecordScan(metrics.Scan{
		Duration:          d.ScanDuration,
		VisitedNodes:      d.VisitedNodes,
		BoundaryCrossings: report.BoundaryCrossingCount,
		WalkSkipped:       d.WalkSkipped,
		ClassifySkipped:   d.ClassifySkipped,
		MalformedBlocks:   d.MalformedBlocks,
	})

	a.logger.Info("scanned page",
		"url", pageURL,
		"forms", len(report.Forms),
		"fields", report.TotalFieldCount,
		"links", report.LinksTotal,
		"visited", d.VisitedNodes,
		"duration", d.ScanDuration)
	return report, nil
}

func (a *Analyzer) lastCleanupTime() time.Time {
	a.cacheMutex.RLock()
	defer a.cacheMutex.RUnlock()
	return a.lastCleanup
}

// GetStats returns the statistics storage instance
func (a *Analyzer) GetStats() *stats.Storage {
	return a.stats
}

// Shutdown stops background work and makes sure statistics are saved
func (a *Analyzer) Shutdown() error {
	if a == nil {
		return nil
	}

	a.closeOnce.Do(func() {
		close(a.done)
	})

	if a.stats != nil {
		if err := a.stats.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown stats storage: %w", err)
		}
	}

	a.ClearCache()
	return nil
}

// FetchError wraps a failure to load the page before any scanning started.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
