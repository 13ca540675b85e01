package fetcher

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// serializeJS returns the rendered document with every open shadow root
// written out as a declarative <template shadowrootmode>. Browsers without
// getHTML fall back to outerHTML, which drops shadow content.
const serializeJS = `() => {
	const el = document.documentElement;
	if (typeof el.getHTML !== 'function') {
		return el.outerHTML;
	}
	const roots = [];
	const collect = (scope) => {
		for (const e of scope.querySelectorAll('*')) {
			if (e.shadowRoot) {
				roots.push(e.shadowRoot);
				collect(e.shadowRoot);
			}
		}
	};
	collect(document);
	const attrs = Array.from(el.attributes, (a) =>
		' ' + a.name + '="' + a.value.replace(/&/g, '&amp;').replace(/"/g, '&quot;') + '"').join('');
	const inner = el.getHTML({ serializableShadowRoots: true, shadowRoots: roots });
	return '<!DOCTYPE html><html' + attrs + '>' + inner + '</html>';
}`

// BrowserFetcher renders the page in headless Chromium before serialising
// it, so scripted content and attached shadow roots are part of the scan.
type BrowserFetcher struct {
	opts Options
}

// NewBrowserFetcher creates a BrowserFetcher. The browser is launched per
// fetch and torn down afterwards.
func NewBrowserFetcher(opts Options) *BrowserFetcher {
	return &BrowserFetcher{opts: opts.withDefaults()}
}

func (f *BrowserFetcher) binary() string {
	if f.opts.BrowserBin != "" {
		return f.opts.BrowserBin
	}
	path, _ := launcher.LookPath()
	return path
}

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	l := launcher.New().Context(ctx).Bin(f.binary()).Headless(true)
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if err := (proto.NetworkSetUserAgentOverride{UserAgent: f.opts.UserAgent}).Call(page); err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", url, err)
	}

	res, err := page.Eval(serializeJS)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise %s: %w", url, err)
	}
	markup := res.Value.Str()

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	f.opts.Logger.Debug("rendered page", "url", finalURL, "bytes", len(markup))
	return &Page{
		URL:           finalURL,
		Body:          []byte(markup),
		ContentLength: len(markup),
	}, nil
}
