package folio

import "context"

// CacheKey identifies a chapter within a content collection.
type CacheKey struct {
	Book  string
	Index int

	// URL is the chapter URL at Index. Stored text saved under another URL
	// does not match, so a reordered table of contents never serves the
	// text of a different chapter.
	URL string
}

// ContentCache serves chapter text for one book, loading on demand.
type ContentCache interface {
	// Load returns the chapter text at index, fetching it if necessary.
	// Concurrent loads of the same index share one fetch.
	Load(ctx context.Context, index int) (*ChapterContent, error)

	// Preload starts background loads for the count chapters after start.
	Preload(start, count int)

	// Clear drops the chapter at index, canceling an in-flight load.
	Clear(index int)

	// ClearAll drops every chapter.
	ClearAll()

	// IsCached reports whether the chapter at index is held in memory.
	IsCached(index int) bool
}

// ChapterStore persists chapter text between runs.
type ChapterStore interface {
	// FindChapterContent returns stored text.
	// Returns ENOTFOUND if the chapter was never stored.
	FindChapterContent(ctx context.Context, key CacheKey) (*ChapterContent, error)

	// SaveChapterContent stores chapter text.
	SaveChapterContent(ctx context.Context, key CacheKey, content *ChapterContent) error
}
