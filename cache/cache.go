// Package cache provides a bounded, deduplicating chapter content cache
// with background preloading.
package cache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fwojciec/folio"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of chapters held in memory.
const DefaultCapacity = 10

// State is the lifecycle position of one chapter in the cache.
type State int

// Chapter states. Absent moves to Loading on a load; Loading resolves to
// Cached or Failed, or back to Absent when the load is canceled.
const (
	Absent State = iota
	Loading
	Cached
	Failed
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Loading:
		return "loading"
	case Cached:
		return "cached"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var _ folio.ContentCache = (*Cache)(nil)

// Cache serves the chapters of one book. Loads of the same chapter share
// one fetch; completed chapters are kept in least-recently-used order up
// to the configured capacity.
type Cache struct {
	book     string
	source   *folio.Source
	chapters []*folio.Chapter
	service  folio.BookService
	store    folio.ChapterStore
	logger   *slog.Logger
	capacity int

	ctx      context.Context
	cancel   context.CancelFunc
	preloads *semaphore.Weighted

	mu       sync.Mutex
	entries  *lru.Cache[int, *folio.ChapterContent]
	inflight map[int]*call
	failed   map[int]error
}

// call is one in-flight load and its waiters.
type call struct {
	done       chan struct{}
	cancel     context.CancelFunc
	background bool
	promote    chan struct{}
	promoted   bool

	content *folio.ChapterContent
	err     error
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity sets the number of chapters held in memory.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		c.capacity = n
	}
}

// WithStore sets a persistent store consulted before the network and
// written after every successful fetch.
func WithStore(store folio.ChapterStore) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithLogger sets the logger for store failures and evictions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New returns a Cache for the chapters of book on src, fetching content
// through service.
func New(book string, src *folio.Source, chapters []*folio.Chapter, service folio.BookService, opts ...Option) (*Cache, error) {
	c := &Cache{
		book:     book,
		source:   src,
		chapters: chapters,
		service:  service,
		capacity: DefaultCapacity,
		preloads: semaphore.NewWeighted(1),
		inflight: make(map[int]*call),
		failed:   make(map[int]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.capacity <= 0 {
		return nil, folio.Errorf(folio.EINVALID, "cache capacity must be positive")
	}

	entries, err := lru.NewWithEvict(c.capacity, func(index int, _ *folio.ChapterContent) {
		c.logger.Debug("chapter dropped", "book", c.book, "index", index)
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// Load returns the chapter at index. A cached chapter is returned at once
// and becomes most recently used; a chapter already loading is awaited
// without a second fetch. If ctx ends first the caller detaches with
// ECANCELED and the shared load continues for the other waiters.
func (c *Cache) Load(ctx context.Context, index int) (*folio.ChapterContent, error) {
	if index < 0 || index >= len(c.chapters) {
		return nil, folio.Errorf(folio.EINVALID, "chapter index %d out of range", index)
	}

	c.mu.Lock()
	if content, ok := c.entries.Get(index); ok {
		c.mu.Unlock()
		return content, nil
	}
	cl, ok := c.inflight[index]
	if !ok {
		cl = c.start(index, false)
	} else if cl.background && !cl.promoted {
		cl.promoted = true
		close(cl.promote)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.content, cl.err
	case <-ctx.Done():
		return nil, folio.Errorf(folio.ECANCELED, "load chapter %d canceled", index)
	}
}

// Preload starts background loads of the count chapters following start.
// Chapters that are not absent are skipped. Background loads run one at a
// time and yield to foreground loads.
func (c *Cache) Preload(start, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := start + 1; i <= start+count && i < len(c.chapters); i++ {
		if i < 0 || c.state(i) != Absent {
			continue
		}
		c.start(i, true)
	}
}

// Clear drops the chapter at index. An in-flight load is canceled and its
// waiters receive ECANCELED.
func (c *Cache) Clear(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abort(index)
	c.entries.Remove(index)
	delete(c.failed, index)
}

// ClearAll drops every chapter and cancels every in-flight load.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index := range c.inflight {
		c.abort(index)
	}
	c.entries.Purge()
	clear(c.failed)
}

// Close cancels all loads and releases the cache.
func (c *Cache) Close() error {
	c.ClearAll()
	c.cancel()
	return nil
}

// IsCached reports whether the chapter at index is held in memory.
// It does not affect recency.
func (c *Cache) IsCached(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(index)
}

// State returns the lifecycle state of the chapter at index.
func (c *Cache) State(index int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state(index)
}

// Err returns the error of a failed chapter, or nil.
func (c *Cache) Err(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[index]
}

// Len returns the number of chapters held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Keys returns the cached chapter indexes from least to most recently used.
func (c *Cache) Keys() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

func (c *Cache) state(index int) State {
	switch {
	case c.entries.Contains(index):
		return Cached
	case c.inflight[index] != nil:
		return Loading
	case c.failed[index] != nil:
		return Failed
	}
	return Absent
}

// start registers a new load. c.mu must be held.
func (c *Cache) start(index int, background bool) *call {
	ctx, cancel := context.WithCancel(c.ctx)
	cl := &call{
		done:       make(chan struct{}),
		cancel:     cancel,
		background: background,
		promote:    make(chan struct{}),
	}
	delete(c.failed, index)
	c.inflight[index] = cl
	go c.run(ctx, index, cl)
	return cl
}

// abort cancels the load of index and resolves its waiters. c.mu must be held.
func (c *Cache) abort(index int) {
	cl, ok := c.inflight[index]
	if !ok {
		return
	}
	delete(c.inflight, index)
	cl.cancel()
	cl.err = folio.Errorf(folio.ECANCELED, "load chapter %d canceled", index)
	close(cl.done)
}

func (c *Cache) run(ctx context.Context, index int, cl *call) {
	defer cl.cancel()

	if cl.background {
		wctx, stop := context.WithCancel(ctx)
		go func() {
			select {
			case <-cl.promote:
				stop()
			case <-wctx.Done():
			}
		}()
		err := c.preloads.Acquire(wctx, 1)
		stop()
		if err == nil {
			defer c.preloads.Release(1)
		} else if ctx.Err() != nil {
			c.finish(index, cl, nil, folio.Errorf(folio.ECANCELED, "preload chapter %d canceled", index))
			return
		}
	}

	content, err := c.fetch(ctx, index)
	c.finish(index, cl, content, err)
}

func (c *Cache) fetch(ctx context.Context, index int) (*folio.ChapterContent, error) {
	key := folio.CacheKey{Book: c.book, Index: index, URL: c.chapters[index].URL}
	if c.store != nil {
		content, err := c.store.FindChapterContent(ctx, key)
		if err == nil {
			return content, nil
		}
		if folio.ErrorCode(err) != folio.ENOTFOUND {
			c.logger.Warn("read stored chapter", "book", c.book, "index", index, "err", err)
		}
	}

	content, err := c.service.Content(ctx, c.source, c.chapters[index].URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, folio.Errorf(folio.ECANCELED, "load chapter %d canceled", index)
		}
		return nil, err
	}
	if content.Name == "" {
		content.Name = c.chapters[index].Name
	}

	if c.store != nil {
		if err := c.store.SaveChapterContent(ctx, key, content); err != nil {
			c.logger.Warn("store chapter", "book", c.book, "index", index, "err", err)
		}
	}
	return content, nil
}

// finish records the outcome of cl and resolves its waiters, unless the
// load was already aborted.
func (c *Cache) finish(index int, cl *call, content *folio.ChapterContent, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[index] != cl {
		return
	}
	delete(c.inflight, index)
	switch {
	case err == nil:
		c.entries.Add(index, content)
	case folio.ErrorCode(err) != folio.ECANCELED:
		c.failed[index] = err
	}
	cl.content, cl.err = content, err
	close(cl.done)
}
