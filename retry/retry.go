// Package retry provides a folio.Fetcher decorator that retries network
// failures with backoff. The acquisition core never retries on its own;
// wiring this decorator is the caller's retry policy.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/folio"
)

var _ folio.Fetcher = (*Fetcher)(nil)

// DefaultDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
func DefaultDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// Fetcher retries ENETWORK failures of the wrapped fetcher. Other failures,
// including cancellation, are returned immediately.
type Fetcher struct {
	next   folio.Fetcher
	delays []time.Duration
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDelays sets the delay before each retry. The number of delays is the
// number of retries.
func WithDelays(delays []time.Duration) Option {
	return func(f *Fetcher) {
		f.delays = delays
	}
}

// WithRetries sets the number of retries using doubling delays from 1s.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		delays := make([]time.Duration, n)
		d := time.Second
		for i := range delays {
			delays[i] = d
			d *= 2
		}
		f.delays = delays
	}
}

// WithLogger sets the logger used to report retry attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher wraps next with retry behavior.
func NewFetcher(next folio.Fetcher, opts ...Option) *Fetcher {
	f := &Fetcher{
		next:   next,
		delays: DefaultDelays(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch attempts the request up to len(delays)+1 times.
func (f *Fetcher) Fetch(ctx context.Context, req *folio.Request) (*folio.Response, error) {
	maxAttempts := len(f.delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := f.next.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if folio.ErrorCode(err) != folio.ENETWORK || attempt >= maxAttempts-1 {
			break
		}

		if f.logger != nil {
			f.logger.Info("retry", "url", req.URL, "attempt", attempt+2, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, folio.Errorf(folio.ECANCELED, "fetch %s canceled", req.URL)
		case <-time.After(f.delays[attempt]):
		}
	}

	return nil, lastErr
}

// Close closes the wrapped fetcher.
func (f *Fetcher) Close() error {
	return f.next.Close()
}
