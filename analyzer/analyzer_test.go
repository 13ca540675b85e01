package analyzer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scanvui/backend/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html lang="en"><head><title>Contact us</title></head>
<body>
  <form action="/send" method="post">
    <label>Email <input type="email" name="email" required></label>
    <textarea name="message" aria-label="Message"></textarea>
    <button>Send</button>
  </form>
  <a href="mailto:hello@example.com">Mail</a>
</body></html>`

type stubFetcher struct {
	calls atomic.Int32
	body  string
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*fetcher.Page, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &fetcher.Page{URL: url, Body: []byte(f.body), ContentLength: len(f.body)}, nil
}

func newTestAnalyzer(t *testing.T, f fetcher.Fetcher) *Analyzer {
	t.Helper()
	a, err := New(t.TempDir(), WithFetcher(f))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, a.Shutdown())
	})
	return a
}

type MemStats struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	NumGC      uint32
}

func getMemStats() MemStats {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return MemStats{
		HeapAlloc:  stats.HeapAlloc,
		TotalAlloc: stats.TotalAlloc,
		NumGC:      stats.NumGC,
	}
}

func TestAnalyze(t *testing.T) {
	f := &stubFetcher{body: samplePage}
	a := newTestAnalyzer(t, f)
	ctx := context.Background()

	report, err := a.Analyze(ctx, "https://example.com/contact")
	require.NoError(t, err)
	assert.Equal(t, "Contact us", report.Title)
	require.Len(t, report.Forms, 1)
	assert.Equal(t, 2, report.TotalFieldCount)
	assert.Equal(t, "Email", report.Forms[0].Fields[0].Label)
	assert.Equal(t, "https://example.com/send", report.Forms[0].Action)
	assert.Equal(t, 1, report.NavigationStats.Contact)

	assert.True(t, a.IsCached("https://example.com/contact"))

	again, err := a.Analyze(ctx, "https://example.com/contact")
	require.NoError(t, err)
	assert.NotSame(t, report, again)
	assert.Equal(t, report, again)
	assert.Equal(t, int32(1), f.calls.Load())

	stats := a.GetCacheStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)

	current := a.GetStats().GetCurrentStats()
	assert.Equal(t, 1, current.Scans)
	assert.Equal(t, 2, current.FieldsFound)
}

func TestCachedReportsAreCopies(t *testing.T) {
	a := newTestAnalyzer(t, &stubFetcher{body: samplePage})
	ctx := context.Background()

	first, err := a.Analyze(ctx, "https://example.com/contact")
	require.NoError(t, err)
	first.Forms[0].Fields[0].Label = "changed"
	first.Metadata.OpenGraph["title"] = "changed"
	first.Links = first.Links[:0]

	second, err := a.Analyze(ctx, "https://example.com/contact")
	require.NoError(t, err)
	assert.Equal(t, "Email", second.Forms[0].Fields[0].Label)
	assert.NotContains(t, second.Metadata.OpenGraph, "title")
	assert.NotEmpty(t, second.Links)
}

func TestCleanupRunsOnce(t *testing.T) {
	a := newTestAnalyzer(t, &stubFetcher{body: samplePage})

	assert.False(t, a.maybeCleanup(), "no cleanup is due right after New")

	a.cacheMutex.Lock()
	a.lastCleanup = time.Now().Add(-time.Hour)
	a.cacheMutex.Unlock()

	a.cleaning.Store(true)
	assert.False(t, a.maybeCleanup(), "a running cleanup is not doubled")

	a.cleaning.Store(false)
	assert.True(t, a.maybeCleanup())
	assert.Eventually(t, func() bool {
		return !a.cleaning.Load() && time.Since(a.lastCleanupTime()) < time.Minute
	}, time.Second, 5*time.Millisecond)
}

func TestAnalyzeFetchError(t *testing.T) {
	cause := &fetcher.StatusError{URL: "https://example.com/missing", Code: 404}
	a := newTestAnalyzer(t, &stubFetcher{err: cause})

	_, err := a.Analyze(context.Background(), "https://example.com/missing")
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "https://example.com/missing", fetchErr.URL)

	var statusErr *fetcher.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.Code)

	assert.False(t, a.IsCached("https://example.com/missing"))
	assert.Equal(t, 1, a.GetStats().GetCurrentStats().ScanFailures)
}

func TestAnalyzeHTML(t *testing.T) {
	f := &stubFetcher{}
	a := newTestAnalyzer(t, f)

	report, err := a.AnalyzeHTML([]byte(samplePage), "https://example.com/contact")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalFieldCount)
	assert.Zero(t, f.calls.Load())
	assert.Zero(t, a.GetCacheStats().Entries)

	_, err = a.AnalyzeHTML([]byte(samplePage), "://bad")
	assert.Error(t, err)
}

func TestCachePurging(t *testing.T) {
	f := &stubFetcher{body: samplePage}
	a := newTestAnalyzer(t, f)
	a.SetCacheTTL(50 * time.Millisecond)

	url := "https://example.com/contact"
	_, err := a.Analyze(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, a.IsCached(url), "URL should be cached immediately after analysis")

	time.Sleep(100 * time.Millisecond)
	assert.False(t, a.IsCached(url), "URL should not be cached after TTL expiration")

	_, err = a.Analyze(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestMaxCacheSize(t *testing.T) {
	a := newTestAnalyzer(t, &stubFetcher{body: samplePage})

	for _, url := range []string{"https://a.example/", "https://b.example/", "https://c.example/"} {
		_, err := a.Analyze(context.Background(), url)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	a.SetMaxCacheSize(2)
	assert.Equal(t, 2, a.GetCacheStats().Entries)
	assert.False(t, a.IsCached("https://a.example/"), "the oldest entry goes first")
	assert.True(t, a.IsCached("https://c.example/"))

	a.ClearCache()
	assert.Zero(t, a.GetCacheStats().Entries)
}

func TestConcurrentCacheAccess(t *testing.T) {
	f := &stubFetcher{body: samplePage}
	a := newTestAnalyzer(t, f)
	urls := []string{
		"https://example.com/",
		"https://example.org/",
		"https://example.net/",
	}

	runtime.GC()
	before := getMemStats()

	concurrency := 50
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if _, err := a.Analyze(context.Background(), url); err != nil {
				failures.Add(1)
			}
		}(urls[i%len(urls)])
	}
	wg.Wait()

	runtime.GC()
	after := getMemStats()
	t.Logf("heap %d -> %d bytes, %d GC runs", before.HeapAlloc, after.HeapAlloc, after.NumGC-before.NumGC)

	assert.Zero(t, failures.Load())
	assert.Equal(t, len(urls), a.GetCacheStats().Entries)
	// concurrent misses on the same URL may each fetch, but never more than once per request
	assert.LessOrEqual(t, int(f.calls.Load()), concurrency)
	assert.GreaterOrEqual(t, int(f.calls.Load()), len(urls))
}

func TestShutdownIsIdempotent(t *testing.T) {
	a, err := New(t.TempDir(), WithFetcher(&stubFetcher{}))
	require.NoError(t, err)
	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())

	var nilAnalyzer *Analyzer
	assert.NoError(t, nilAnalyzer.Shutdown())
}

func TestAnalyzeEmptyMarkup(t *testing.T) {
	a := newTestAnalyzer(t, &stubFetcher{body: ""})

	// the HTML parser always builds a document element, so empty markup is
	// an empty page rather than a missing document
	report, err := a.Analyze(context.Background(), "https://example.com/empty")
	require.NoError(t, err)
	assert.Empty(t, report.Forms)
	assert.NotNil(t, report.Forms)
}
