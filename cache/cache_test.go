package cache_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/cache"
	"github.com/fwojciec/folio/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapters(n int) []*folio.Chapter {
	out := make([]*folio.Chapter, n)
	for i := range out {
		out[i] = &folio.Chapter{Index: i, Name: fmt.Sprintf("Chapter %d", i), URL: fmt.Sprintf("https://example.com/c/%d", i)}
	}
	return out
}

// countingService returns the chapter URL as text and counts fetches per URL.
type countingService struct {
	mu      sync.Mutex
	fetches map[string]int
	release chan struct{}
}

func newCountingService() *countingService {
	return &countingService{fetches: make(map[string]int)}
}

func (s *countingService) service() *mock.BookService {
	return &mock.BookService{
		ContentFn: func(ctx context.Context, _ *folio.Source, chapterURL string) (*folio.ChapterContent, error) {
			s.mu.Lock()
			s.fetches[chapterURL]++
			release := s.release
			s.mu.Unlock()
			if release != nil {
				select {
				case <-release:
				case <-ctx.Done():
					return nil, folio.Errorf(folio.ECANCELED, "canceled")
				}
			}
			return &folio.ChapterContent{Text: chapterURL, Pages: 1}, nil
		},
	}
}

func (s *countingService) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[url]
}

func newCache(t *testing.T, svc folio.BookService, n int, opts ...cache.Option) *cache.Cache {
	t.Helper()
	c, err := cache.New("book", &folio.Source{Name: "Example"}, chapters(n), svc, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_Load(t *testing.T) {
	t.Parallel()

	t.Run("fetches once and serves from memory", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 3)

		first, err := c.Load(context.Background(), 1)
		require.NoError(t, err)
		second, err := c.Load(context.Background(), 1)
		require.NoError(t, err)

		assert.Equal(t, "https://example.com/c/1", first.Text)
		assert.Equal(t, "Chapter 1", first.Name)
		assert.Same(t, first, second)
		assert.Equal(t, 1, svc.count("https://example.com/c/1"))
		assert.True(t, c.IsCached(1))
		assert.Equal(t, cache.Cached, c.State(1))
	})

	t.Run("evicts the least recently used chapter", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 3, cache.WithCapacity(2))
		ctx := context.Background()

		for _, i := range []int{0, 1, 0, 2} {
			_, err := c.Load(ctx, i)
			require.NoError(t, err)
		}

		assert.True(t, c.IsCached(0))
		assert.False(t, c.IsCached(1))
		assert.True(t, c.IsCached(2))
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []int{0, 2}, c.Keys())
		assert.Equal(t, cache.Absent, c.State(1))
	})

	t.Run("never holds more chapters than its capacity", func(t *testing.T) {
		t.Parallel()

		const capacity, extra = 3, 4
		svc := newCountingService()
		c := newCache(t, svc.service(), capacity+extra, cache.WithCapacity(capacity))
		ctx := context.Background()

		for i := range capacity + extra {
			_, err := c.Load(ctx, i)
			require.NoError(t, err)
			assert.LessOrEqual(t, c.Len(), capacity)
		}

		assert.Equal(t, []int{4, 5, 6}, c.Keys())
		for i := range extra {
			assert.Equal(t, cache.Absent, c.State(i))
		}
	})

	t.Run("concurrent loads share one fetch", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		svc.release = make(chan struct{})
		c := newCache(t, svc.service(), 1)

		const n = 8
		var wg sync.WaitGroup
		results := make([]*folio.ChapterContent, n)
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = c.Load(context.Background(), 0)
			}()
		}
		require.Eventually(t, func() bool { return c.State(0) == cache.Loading }, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		close(svc.release)
		wg.Wait()

		assert.Equal(t, 1, svc.count("https://example.com/c/0"))
		for i := range n {
			require.NoError(t, errs[i])
			assert.Same(t, results[0], results[i])
		}
	})

	t.Run("failures are shared and retried on the next load", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := &mock.BookService{
			ContentFn: func(_ context.Context, _ *folio.Source, _ string) (*folio.ChapterContent, error) {
				if calls.Add(1) == 1 {
					return nil, folio.Errorf(folio.ENETWORK, "HTTP 503")
				}
				return &folio.ChapterContent{Text: "ok"}, nil
			},
		}
		c := newCache(t, svc, 1)

		_, err := c.Load(context.Background(), 0)
		assert.Equal(t, folio.ENETWORK, folio.ErrorCode(err))
		assert.Equal(t, cache.Failed, c.State(0))
		assert.Equal(t, folio.ENETWORK, folio.ErrorCode(c.Err(0)))

		got, err := c.Load(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, "ok", got.Text)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("a canceled waiter detaches without stopping the load", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		svc.release = make(chan struct{})
		c := newCache(t, svc.service(), 1)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			_, err := c.Load(ctx, 0)
			errCh <- err
		}()
		require.Eventually(t, func() bool { return c.State(0) == cache.Loading }, time.Second, time.Millisecond)
		cancel()
		assert.Equal(t, folio.ECANCELED, folio.ErrorCode(<-errCh))

		close(svc.release)
		got, err := c.Load(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/c/0", got.Text)
		assert.Equal(t, 1, svc.count("https://example.com/c/0"))
	})

	t.Run("rejects out of range indexes", func(t *testing.T) {
		t.Parallel()

		c := newCache(t, &mock.BookService{}, 1)

		_, err := c.Load(context.Background(), 5)

		assert.Equal(t, folio.EINVALID, folio.ErrorCode(err))
	})
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	t.Run("cancels in-flight loads and resolves waiters", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		svc.release = make(chan struct{})
		c := newCache(t, svc.service(), 1)

		errCh := make(chan error, 2)
		for range 2 {
			go func() {
				_, err := c.Load(context.Background(), 0)
				errCh <- err
			}()
		}
		require.Eventually(t, func() bool { return svc.count("https://example.com/c/0") == 1 }, time.Second, time.Millisecond)
		c.Clear(0)

		assert.Equal(t, folio.ECANCELED, folio.ErrorCode(<-errCh))
		assert.Equal(t, folio.ECANCELED, folio.ErrorCode(<-errCh))
		assert.Equal(t, cache.Absent, c.State(0))
	})

	t.Run("clear all cancels every in-flight load", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 4)
		_, err := c.Load(context.Background(), 3)
		require.NoError(t, err)
		svc.mu.Lock()
		svc.release = make(chan struct{})
		svc.mu.Unlock()

		errCh := make(chan error, 3)
		for i := range 3 {
			go func() {
				_, err := c.Load(context.Background(), i)
				errCh <- err
			}()
		}
		require.Eventually(t, func() bool {
			return svc.count("https://example.com/c/0") == 1 &&
				svc.count("https://example.com/c/1") == 1 &&
				svc.count("https://example.com/c/2") == 1
		}, time.Second, time.Millisecond)

		c.ClearAll()

		for range 3 {
			assert.Equal(t, folio.ECANCELED, folio.ErrorCode(<-errCh))
		}
		for i := range 4 {
			assert.Equal(t, cache.Absent, c.State(i))
		}
		assert.Equal(t, 0, c.Len())
		assert.Never(t, func() bool { return c.Len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("removes cached chapters", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 2)
		_, err := c.Load(context.Background(), 0)
		require.NoError(t, err)
		_, err = c.Load(context.Background(), 1)
		require.NoError(t, err)

		c.Clear(0)
		assert.False(t, c.IsCached(0))
		assert.True(t, c.IsCached(1))

		c.ClearAll()
		assert.Equal(t, 0, c.Len())
	})
}

func TestCache_Preload(t *testing.T) {
	t.Parallel()

	t.Run("loads the chapters following start", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 5)

		c.Preload(1, 2)

		require.Eventually(t, func() bool { return c.IsCached(2) && c.IsCached(3) }, time.Second, time.Millisecond)
		assert.False(t, c.IsCached(1))
		assert.False(t, c.IsCached(4))
	})

	t.Run("stops at the last chapter", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 3)

		c.Preload(1, 5)

		require.Eventually(t, func() bool { return c.IsCached(2) }, time.Second, time.Millisecond)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("a foreground load joins a queued preload", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		svc.release = make(chan struct{})
		c := newCache(t, svc.service(), 3)

		c.Preload(0, 2)
		require.Eventually(t, func() bool {
			return svc.count("https://example.com/c/1")+svc.count("https://example.com/c/2") == 1
		}, time.Second, time.Millisecond)
		queued := 1
		if svc.count("https://example.com/c/1") == 1 {
			queued = 2
		}
		queuedURL := fmt.Sprintf("https://example.com/c/%d", queued)
		assert.Equal(t, cache.Loading, c.State(queued))

		done := make(chan error, 1)
		go func() {
			_, err := c.Load(context.Background(), queued)
			done <- err
		}()
		require.Eventually(t, func() bool { return svc.count(queuedURL) == 1 }, time.Second, time.Millisecond)
		close(svc.release)

		require.NoError(t, <-done)
		assert.Equal(t, 1, svc.count(queuedURL))
	})

	t.Run("skips chapters that are already cached", func(t *testing.T) {
		t.Parallel()

		svc := newCountingService()
		c := newCache(t, svc.service(), 3)
		_, err := c.Load(context.Background(), 1)
		require.NoError(t, err)

		c.Preload(0, 2)

		require.Eventually(t, func() bool { return c.IsCached(2) }, time.Second, time.Millisecond)
		assert.Equal(t, 1, svc.count("https://example.com/c/1"))
	})
}

func TestCache_Store(t *testing.T) {
	t.Parallel()

	t.Run("serves stored chapters without fetching", func(t *testing.T) {
		t.Parallel()

		store := &mock.ChapterStore{
			FindChapterContentFn: func(_ context.Context, key folio.CacheKey) (*folio.ChapterContent, error) {
				assert.Equal(t, folio.CacheKey{Book: "book", Index: 0, URL: "https://example.com/c/0"}, key)
				return &folio.ChapterContent{Text: "stored"}, nil
			},
		}
		c := newCache(t, &mock.BookService{}, 1, cache.WithStore(store))

		got, err := c.Load(context.Background(), 0)

		require.NoError(t, err)
		assert.Equal(t, "stored", got.Text)
	})

	t.Run("saves fetched chapters", func(t *testing.T) {
		t.Parallel()

		var saved atomic.Pointer[folio.ChapterContent]
		store := &mock.ChapterStore{
			FindChapterContentFn: func(_ context.Context, _ folio.CacheKey) (*folio.ChapterContent, error) {
				return nil, folio.Errorf(folio.ENOTFOUND, "not stored")
			},
			SaveChapterContentFn: func(_ context.Context, _ folio.CacheKey, content *folio.ChapterContent) error {
				saved.Store(content)
				return nil
			},
		}
		svc := newCountingService()
		c := newCache(t, svc.service(), 1, cache.WithStore(store))

		got, err := c.Load(context.Background(), 0)

		require.NoError(t, err)
		assert.Same(t, got, saved.Load())
	})
}
