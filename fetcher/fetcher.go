// Package fetcher loads the documents that get scanned.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Fetch modes.
const (
	ModeHTTP    = "http"
	ModeBrowser = "browser"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultUserAgent   = "ScanVUI/1.0"
	DefaultMaxBodySize = 10 << 20
)

// ErrUnsupportedMode is returned by New for an unknown mode.
var ErrUnsupportedMode = errors.New("unsupported fetch mode")

// Page is a fetched document.
type Page struct {
	URL           string
	Body          []byte
	ContentLength int
}

// Fetcher loads a page by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Options configures both fetchers. Zero values fall back to the defaults.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64
	BrowserBin  string
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = DefaultMaxBodySize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New returns the fetcher for mode.
func New(mode string, opts Options) (Fetcher, error) {
	switch mode {
	case "", ModeHTTP:
		return NewHTTPFetcher(opts), nil
	case ModeBrowser:
		return NewBrowserFetcher(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.Code)
}
