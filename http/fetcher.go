// Package http provides an HTTP-based implementation of folio.Fetcher
// for sources that serve their pages without JavaScript rendering.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/folio"
	"golang.org/x/net/html/charset"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 15 * time.Second

// DefaultMaxRedirects bounds the redirect chain followed for one request.
const DefaultMaxRedirects = 10

// DefaultMaxBodySize bounds the number of bytes read from a response.
const DefaultMaxBodySize = 16 << 20

// DefaultUserAgent is sent when a request carries no User-Agent header.
const DefaultUserAgent = "Mozilla/5.0 (compatible; folio/1.0)"

// Ensure Fetcher implements folio.Fetcher at compile time.
var _ folio.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves documents using HTTP requests and decodes them to UTF-8.
// Unlike rod.Fetcher, this does not execute JavaScript.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxRedirects int
	maxBodySize  int64
	userAgent    string
	limiter      *DomainLimiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxRedirects sets how many redirects a request may follow.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		f.maxRedirects = n
	}
}

// WithMaxBodySize sets the maximum number of response bytes read. A larger
// response fails with ENETWORK.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithUserAgent sets the User-Agent sent when a request has none.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRateLimit limits requests to rps per host. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = NewDomainLimiter(rps)
		} else {
			f.limiter = nil
		}
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:      DefaultFetchTimeout,
		maxRedirects: DefaultMaxRedirects,
		maxBodySize:  DefaultMaxBodySize,
		userAgent:    DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > f.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", f.maxRedirects)
			}
			return nil
		},
	}

	return f
}

// Fetch performs the request and returns the body decoded to UTF-8.
// The declared encoding of req wins; otherwise the encoding is taken from
// the Content-Type header or sniffed from the body.
func (f *Fetcher) Fetch(ctx context.Context, req *folio.Request) (*folio.Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, folio.Errorf(folio.EINVALID, "invalid request URL %q", req.URL)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return nil, classify(ctx, req.URL, err)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), body)
	if err != nil {
		return nil, folio.Errorf(folio.EINVALID, "build request: %v", err)
	}
	for _, h := range req.Header {
		hreq.Header.Set(h.Name, h.Value)
	}
	if hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", f.userAgent)
	}
	if body != nil && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := f.client.Do(hreq)
	if err != nil {
		return nil, classify(ctx, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, folio.Errorf(folio.ENETWORK, "HTTP %d for %s", resp.StatusCode, req.URL)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, classify(ctx, req.URL, err)
	}
	if int64(len(raw)) > f.maxBodySize {
		return nil, folio.Errorf(folio.ENETWORK, "response from %s exceeds %d bytes", req.URL, f.maxBodySize)
	}

	text, err := decode(raw, req.Encoding, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	return &folio.Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       raw,
		Text:       text,
	}, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// decode converts raw to UTF-8 using the declared label, or the encoding
// determined from the content type and body.
func decode(raw []byte, label, contentType string) (string, error) {
	if label != "" {
		enc, _ := charset.Lookup(label)
		if enc == nil {
			return "", folio.Errorf(folio.EPARSE, "unknown encoding %q", label)
		}
		b, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", folio.Errorf(folio.EPARSE, "decode %s: %v", label, err)
		}
		return string(b), nil
	}

	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(raw), nil
	}
	b, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", folio.Errorf(folio.EPARSE, "decode %s: %v", name, err)
	}
	return string(b), nil
}

// classify maps transport errors to application errors. Cancellation by the
// caller is ECANCELED; timeouts and connection failures are ENETWORK.
func classify(ctx context.Context, rawURL string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return folio.Errorf(folio.ECANCELED, "fetch %s canceled", rawURL)
	}
	return folio.Errorf(folio.ENETWORK, "fetch %s: %v", rawURL, err)
}
