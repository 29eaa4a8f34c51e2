// Package rod fetches documents through a headless Chrome browser, for
// sources whose pages are rendered by JavaScript.
package rod

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fwojciec/folio"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultFetchTimeout bounds a single page load.
const DefaultFetchTimeout = 30 * time.Second

// Ensure Fetcher implements folio.Fetcher at compile time.
var _ folio.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager  *BrowserManager
	timeout  time.Duration
	maxPages int
	closed   atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the timeout for a single page load.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRecycleAfter sets the number of pages after which the browser is
// replaced.
func WithRecycleAfter(n int) Option {
	return func(f *Fetcher) {
		f.maxPages = n
	}
}

// NewFetcher creates a new Fetcher that launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{timeout: DefaultFetchTimeout, maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(f)
	}

	manager, err := NewBrowserManager(WithMaxPages(f.maxPages))
	if err != nil {
		return nil, folio.Errorf(folio.ENETWORK, "%v", err)
	}
	f.manager = manager
	return f, nil
}

// Fetch navigates to the request URL and returns the rendered HTML.
// Only GET requests are supported; source headers are sent with the
// navigation request.
func (f *Fetcher) Fetch(ctx context.Context, req *folio.Request) (*folio.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, folio.Errorf(folio.ECANCELED, "fetch %s canceled", req.URL)
	}
	if f.closed.Load() {
		return nil, folio.Errorf(folio.EINVALID, "fetcher is closed")
	}
	if req.Method != "" && !strings.EqualFold(req.Method, "GET") {
		return nil, folio.Errorf(folio.EINVALID, "browser fetch does not support %s requests", req.Method)
	}

	page, release, err := f.manager.Page()
	if err != nil {
		return nil, folio.Errorf(folio.ENETWORK, "open page: %v", err)
	}
	defer release()

	page = page.Context(ctx).Timeout(f.timeout)

	var headers []string
	for _, h := range req.Header {
		if strings.EqualFold(h.Name, "User-Agent") {
			if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: h.Value}); err != nil {
				return nil, f.classify(ctx, req.URL, err)
			}
			continue
		}
		headers = append(headers, h.Name, h.Value)
	}
	if len(headers) > 0 {
		cleanup, err := page.SetExtraHeaders(headers)
		if err != nil {
			return nil, f.classify(ctx, req.URL, err)
		}
		defer cleanup()
	}

	if err := page.Navigate(req.URL); err != nil {
		return nil, f.classify(ctx, req.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, f.classify(ctx, req.URL, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, f.classify(ctx, req.URL, err)
	}

	final := req.URL
	if info, err := page.Info(); err == nil && info.URL != "" {
		final = info.URL
	}

	return &folio.Response{
		URL:        final,
		StatusCode: 200,
		Body:       []byte(html),
		Text:       html,
	}, nil
}

// classify maps browser errors to folio error codes.
func (f *Fetcher) classify(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return folio.Errorf(folio.ECANCELED, "fetch %s canceled", url)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return folio.Errorf(folio.ENETWORK, "fetch %s: timed out", url)
	}
	return folio.Errorf(folio.ENETWORK, "fetch %s: %v", url, err)
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}

// LauncherPID returns the process ID of the browser launcher.
// This method exists for testing purposes to verify proper cleanup.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}
