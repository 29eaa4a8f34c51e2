package acquire

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fwojciec/folio"
	"golang.org/x/sync/errgroup"
)

// SourceResult is the outcome of searching one source during a fan-out.
type SourceResult struct {
	Source  *folio.Source
	Books   []*folio.Book
	Err     error
	Elapsed time.Duration
}

// FanOut is a running multi-source search.
type FanOut struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	books []*folio.Book
}

// Cancel stops the fan-out. Outstanding searches are canceled and no
// further per-source callbacks are delivered. The aggregate callback still
// fires once, with the results delivered before cancellation.
func (f *FanOut) Cancel() {
	f.cancel()
}

// Done is closed after the aggregate callback has returned.
func (f *FanOut) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the fan-out finishes and returns the aggregate results.
func (f *FanOut) Wait() []*folio.Book {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.books
}

// SearchAll searches every enabled source concurrently, at most Concurrency
// at a time. progress receives each source's outcome in completion order;
// done receives the concatenated books of every successful source once all
// sources have finished or the fan-out was canceled. Callbacks are never
// invoked concurrently and either may be nil.
func (p *Pipeline) SearchAll(ctx context.Context, sources []*folio.Source, keyword string, progress func(SourceResult), done func([]*folio.Book)) *FanOut {
	fctx, cancel := context.WithCancel(ctx)
	f := &FanOut{cancel: cancel, done: make(chan struct{})}

	ordered := Order(sources)
	resultCh := make(chan SourceResult, len(ordered))

	var g errgroup.Group
	g.SetLimit(p.concurrency())

	go func() {
		for _, src := range ordered {
			if fctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if fctx.Err() != nil {
					return nil
				}
				begin := time.Now()
				books, err := p.Search(fctx, src, keyword)
				resultCh <- SourceResult{Source: src, Books: books, Err: err, Elapsed: time.Since(begin)}
				return nil
			})
		}
		_ = g.Wait()
		close(resultCh)
	}()

	go func() {
		defer close(f.done)
		defer cancel()
		for r := range resultCh {
			if fctx.Err() != nil {
				continue
			}
			if r.Err == nil {
				f.mu.Lock()
				f.books = append(f.books, r.Books...)
				f.mu.Unlock()
			}
			if progress != nil {
				progress(r)
			}
		}
		if done != nil {
			f.mu.Lock()
			books := f.books
			f.mu.Unlock()
			done(books)
		}
	}()

	return f
}

// Order returns the enabled sources that can be searched, highest weight
// first, then fastest recorded response, then custom order.
func Order(sources []*folio.Source) []*folio.Source {
	out := make([]*folio.Source, 0, len(sources))
	for _, src := range sources {
		if src != nil && src.Enabled && src.SearchURL != "" {
			out = append(out, src)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.RespondTime != b.RespondTime {
			return a.RespondTime < b.RespondTime
		}
		return a.CustomOrder < b.CustomOrder
	})
	return out
}
