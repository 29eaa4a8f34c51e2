package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/folio"
)

// Ensure LoggingBookService implements folio.BookService.
var _ folio.BookService = (*LoggingBookService)(nil)

// LoggingBookService wraps a BookService with logging.
type LoggingBookService struct {
	next   folio.BookService
	logger *slog.Logger
}

// NewLoggingBookService creates a new LoggingBookService.
func NewLoggingBookService(next folio.BookService, logger *slog.Logger) *LoggingBookService {
	return &LoggingBookService{next: next, logger: logger}
}

func (s *LoggingBookService) Search(ctx context.Context, src *folio.Source, keyword string) (books []*folio.Book, err error) {
	defer func(begin time.Time) {
		s.logger.Info("search",
			"source", src.Name,
			"keyword", keyword,
			"count", len(books),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Search(ctx, src, keyword)
}

func (s *LoggingBookService) Explore(ctx context.Context, src *folio.Source, page int) (books []*folio.Book, err error) {
	defer func(begin time.Time) {
		s.logger.Info("explore",
			"source", src.Name,
			"page", page,
			"count", len(books),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Explore(ctx, src, page)
}

func (s *LoggingBookService) TableOfContents(ctx context.Context, src *folio.Source, bookURL string) (toc *folio.TableOfContents, err error) {
	defer func(begin time.Time) {
		var chapters int
		if toc != nil {
			chapters = len(toc.Chapters)
		}
		s.logger.Info("table of contents",
			"source", src.Name,
			"url", bookURL,
			"chapters", chapters,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.TableOfContents(ctx, src, bookURL)
}

func (s *LoggingBookService) Content(ctx context.Context, src *folio.Source, chapterURL string) (content *folio.ChapterContent, err error) {
	defer func(begin time.Time) {
		var pages, chars int
		if content != nil {
			pages, chars = content.Pages, len([]rune(content.Text))
		}
		s.logger.Info("content",
			"source", src.Name,
			"url", chapterURL,
			"pages", pages,
			"chars", chars,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Content(ctx, src, chapterURL)
}
