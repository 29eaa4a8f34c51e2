// Package slog provides logging decorators for folio services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/folio"
)

// Ensure LoggingFetcher implements folio.Fetcher.
var _ folio.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher and logs every request at Info level.
type LoggingFetcher struct {
	next   folio.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next folio.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch logs the request and delegates to the wrapped fetcher.
func (f *LoggingFetcher) Fetch(ctx context.Context, req *folio.Request) (resp *folio.Response, err error) {
	defer func(begin time.Time) {
		var bytes, status int
		if resp != nil {
			bytes, status = len(resp.Body), resp.StatusCode
		}
		f.logger.Info("fetch",
			"url", req.URL,
			"method", methodOf(req),
			"status", status,
			"bytes", bytes,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.Fetch(ctx, req)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}

func methodOf(req *folio.Request) string {
	if req.Method == "" {
		return "GET"
	}
	return req.Method
}
