package mock

import (
	"context"

	"github.com/fwojciec/folio"
)

// Compile-time interface verification.
var (
	_ folio.ContentCache  = (*ContentCache)(nil)
	_ folio.ChapterStore  = (*ChapterStore)(nil)
	_ folio.ChapterWriter = (*ChapterWriter)(nil)
)

// ContentCache is a mock implementation of folio.ContentCache.
type ContentCache struct {
	LoadFn     func(ctx context.Context, index int) (*folio.ChapterContent, error)
	PreloadFn  func(start, count int)
	ClearFn    func(index int)
	ClearAllFn func()
	IsCachedFn func(index int) bool
}

func (c *ContentCache) Load(ctx context.Context, index int) (*folio.ChapterContent, error) {
	return c.LoadFn(ctx, index)
}

func (c *ContentCache) Preload(start, count int) {
	c.PreloadFn(start, count)
}

func (c *ContentCache) Clear(index int) {
	c.ClearFn(index)
}

func (c *ContentCache) ClearAll() {
	c.ClearAllFn()
}

func (c *ContentCache) IsCached(index int) bool {
	return c.IsCachedFn(index)
}

// ChapterStore is a mock implementation of folio.ChapterStore.
type ChapterStore struct {
	FindChapterContentFn func(ctx context.Context, key folio.CacheKey) (*folio.ChapterContent, error)
	SaveChapterContentFn func(ctx context.Context, key folio.CacheKey, content *folio.ChapterContent) error
}

func (s *ChapterStore) FindChapterContent(ctx context.Context, key folio.CacheKey) (*folio.ChapterContent, error) {
	return s.FindChapterContentFn(ctx, key)
}

func (s *ChapterStore) SaveChapterContent(ctx context.Context, key folio.CacheKey, content *folio.ChapterContent) error {
	return s.SaveChapterContentFn(ctx, key, content)
}

// ChapterWriter is a mock implementation of folio.ChapterWriter.
type ChapterWriter struct {
	SaveFn   func(ctx context.Context, chapter *folio.Chapter, content *folio.ChapterContent) error
	CommitFn func() error
	AbortFn  func() error
}

func (w *ChapterWriter) Save(ctx context.Context, chapter *folio.Chapter, content *folio.ChapterContent) error {
	return w.SaveFn(ctx, chapter, content)
}

func (w *ChapterWriter) Commit() error {
	return w.CommitFn()
}

func (w *ChapterWriter) Abort() error {
	return w.AbortFn()
}
