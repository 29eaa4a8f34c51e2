package acquire_test

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/acquire"
	"github.com/fwojciec/folio/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostSource(host string) *folio.Source {
	src := searchSource()
	src.Name = host
	src.URL = "https://" + host
	src.SearchURL = "https://" + host + "/search?q={{$.key}}"
	return src
}

func hostOf(t *testing.T, raw string) string {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}

func TestPipeline_SearchAll(t *testing.T) {
	t.Parallel()

	t.Run("aggregates successful sources and reports failures", func(t *testing.T) {
		t.Parallel()

		p := newPipeline(&mock.Fetcher{
			FetchFn: func(_ context.Context, req *folio.Request) (*folio.Response, error) {
				if hostOf(t, req.URL) == "down.example" {
					return nil, folio.Errorf(folio.ENETWORK, "connection refused")
				}
				return &folio.Response{URL: req.URL, Text: searchHTML}, nil
			},
		})
		sources := []*folio.Source{hostSource("a.example"), hostSource("down.example"), hostSource("b.example")}

		var mu sync.Mutex
		var results []acquire.SourceResult
		var aggregates atomic.Int32
		var aggregate []*folio.Book
		f := p.SearchAll(context.Background(), sources, "foo",
			func(r acquire.SourceResult) {
				mu.Lock()
				defer mu.Unlock()
				results = append(results, r)
			},
			func(books []*folio.Book) {
				aggregates.Add(1)
				aggregate = books
			})
		books := f.Wait()

		assert.Equal(t, int32(1), aggregates.Load())
		assert.Len(t, books, 4)
		assert.Equal(t, books, aggregate)
		require.Len(t, results, 3)
		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
				assert.Equal(t, "down.example", r.Source.Name)
				assert.Equal(t, folio.ENETWORK, folio.ErrorCode(r.Err))
			}
		}
		assert.Equal(t, 1, failed)
	})

	t.Run("delivers results in completion order", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		p := newPipeline(&mock.Fetcher{
			FetchFn: func(ctx context.Context, req *folio.Request) (*folio.Response, error) {
				if hostOf(t, req.URL) == "slow.example" {
					select {
					case <-release:
					case <-ctx.Done():
						return nil, folio.Errorf(folio.ECANCELED, "canceled")
					}
				}
				return &folio.Response{URL: req.URL, Text: searchHTML}, nil
			},
		})
		p.Concurrency = 2

		var order []string
		f := p.SearchAll(context.Background(), []*folio.Source{hostSource("slow.example"), hostSource("fast.example")}, "foo",
			func(r acquire.SourceResult) {
				order = append(order, r.Source.Name)
				if r.Source.Name == "fast.example" {
					close(release)
				}
			}, nil)
		f.Wait()

		assert.Equal(t, []string{"fast.example", "slow.example"}, order)
	})

	t.Run("cancel suppresses per-source callbacks", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{}, 2)
		p := newPipeline(&mock.Fetcher{
			FetchFn: func(ctx context.Context, _ *folio.Request) (*folio.Response, error) {
				started <- struct{}{}
				<-ctx.Done()
				return nil, folio.Errorf(folio.ECANCELED, "canceled")
			},
		})
		p.Concurrency = 2

		var progressCalls, aggregates atomic.Int32
		f := p.SearchAll(context.Background(), []*folio.Source{hostSource("a.example"), hostSource("b.example")}, "foo",
			func(acquire.SourceResult) { progressCalls.Add(1) },
			func([]*folio.Book) { aggregates.Add(1) })
		<-started
		<-started
		f.Cancel()
		books := f.Wait()

		assert.Empty(t, books)
		assert.Equal(t, int32(0), progressCalls.Load())
		assert.Equal(t, int32(1), aggregates.Load())
	})

	t.Run("finishes immediately without searchable sources", func(t *testing.T) {
		t.Parallel()

		disabled := hostSource("a.example")
		disabled.Enabled = false
		p := newPipeline(&mock.Fetcher{})

		var aggregates atomic.Int32
		f := p.SearchAll(context.Background(), []*folio.Source{disabled}, "foo", nil,
			func([]*folio.Book) { aggregates.Add(1) })

		assert.Empty(t, f.Wait())
		assert.Equal(t, int32(1), aggregates.Load())
	})
}

func TestOrder(t *testing.T) {
	t.Parallel()

	src := func(name string, weight int, respond int64, order int) *folio.Source {
		return &folio.Source{Name: name, Enabled: true, SearchURL: "https://x/", Weight: weight, RespondTime: respond, CustomOrder: order}
	}
	noSearch := src("no-search", 100, 0, 0)
	noSearch.SearchURL = ""

	got := acquire.Order([]*folio.Source{
		src("slow", 1, 900, 0),
		src("heavy", 5, 900, 0),
		noSearch,
		src("fast", 1, 100, 2),
		src("fast-first", 1, 100, 1),
	})

	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"heavy", "fast-first", "fast", "slow"}, names)
}
