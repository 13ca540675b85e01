package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/scanvui/backend/analyzer"
	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/logging"
	"github.com/scanvui/backend/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeScanner scans posted markup for real and fails URL scans on demand.
type fakeScanner struct {
	analyzeErr error
	urls       []string
}

func (f *fakeScanner) Analyze(_ context.Context, url string) (*analyzer.Report, error) {
	f.urls = append(f.urls, url)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &analyzer.Report{URL: url}, nil
}

func (f *fakeScanner) AnalyzeHTML(markup []byte, pageURL string) (*analyzer.Report, error) {
	doc, err := dom.ParseString(string(markup), pageURL)
	if err != nil {
		return nil, err
	}
	return analyzer.Scan(doc)
}

func (f *fakeScanner) GetCacheStats() analyzer.CacheStats {
	return analyzer.CacheStats{Entries: 3}
}

func newTestServer(t *testing.T, scanner Scanner) http.Handler {
	t.Helper()
	stats, err := logging.NewStatistics(t.TempDir(), false)
	require.NoError(t, err)
	return New(scanner, stats, Options{RatePerSecond: 100, RateBurst: 100}).Handler()
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeScanner{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestScanHTML(t *testing.T) {
	h := newTestServer(t, &fakeScanner{})

	body, _ := json.Marshal(map[string]string{
		"html":    `<form><label>Name <input name="n"></label><input type="hidden" name="t"></form><a href="tel:123">Call</a>`,
		"pageUrl": "https://example.com/",
	})
	w := post(h, string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report analyzer.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalFieldCount)
	require.Len(t, report.Forms, 1)
	assert.Equal(t, "Name", report.Forms[0].Fields[0].Label)
	assert.Equal(t, 1, report.NavigationStats.Contact)
}

func TestScanURL(t *testing.T) {
	scanner := &fakeScanner{}
	h := newTestServer(t, scanner)

	w := post(h, `{"url":"https://example.com/signup"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"https://example.com/signup"}, scanner.urls)
}

func TestScanBadRequests(t *testing.T) {
	scanner := &fakeScanner{}
	h := newTestServer(t, scanner)

	for name, body := range map[string]string{
		"not json":       `{`,
		"nothing":        `{}`,
		"blank html":     `{"html":"   "}`,
		"not a url":      `{"url":"example"}`,
		"wrong scheme":   `{"url":"ftp://example.com/"}`,
		"bad page url":   `{"html":"<p>","pageUrl":"nope"}`,
		"file scheme":    `{"url":"file:///etc/passwd"}`,
		"javascript url": `{"url":"javascript:alert(1)"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := post(h, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, scanner.urls)
}

func TestScanErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fetch failure", &analyzer.FetchError{URL: "https://example.com/", Err: errors.New("connection refused")}, http.StatusBadGateway},
		{"no document", dom.ErrNoDocument, http.StatusUnprocessableEntity},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeScanner{analyzeErr: tt.err})
			w := post(h, `{"url":"https://example.com/"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "Failed to scan page")
		})
	}
}

func TestStatistics(t *testing.T) {
	h := newTestServer(t, &fakeScanner{})
	post(h, `{"url":"https://example.com/"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, float64(1), out["totalRequests"])
	assert.Equal(t, float64(3), out["cache"].(map[string]any)["entries"])
}

func TestRateLimited(t *testing.T) {
	stats, err := logging.NewStatistics(t.TempDir(), false)
	require.NoError(t, err)
	h := New(&fakeScanner{}, stats, Options{RatePerSecond: 0.001, RateBurst: 1}).Handler()

	assert.Equal(t, http.StatusOK, post(h, `{"url":"https://example.com/"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(h, `{"url":"https://example.com/"}`).Code)

	// health checks are not limited
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeScanner{})
	post(h, `{"url":"https://example.com/"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scanvui_http_requests_total")
}
