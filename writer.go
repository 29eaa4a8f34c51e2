package folio

import "context"

// ChapterWriter writes downloaded chapters with atomic semantics.
// Save writes to a temporary location; Commit makes changes permanent;
// Abort discards pending changes.
type ChapterWriter interface {
	Save(ctx context.Context, chapter *Chapter, content *ChapterContent) error
	Commit() error
	Abort() error
}

// DownloadProgress reports progress while downloading a book.
type DownloadProgress struct {
	Chapter   *Chapter
	Completed int
	Total     int
	Error     error
}

// DownloadProgressFunc is called as chapters are processed.
type DownloadProgressFunc func(DownloadProgress)
