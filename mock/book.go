package mock

import (
	"context"

	"github.com/fwojciec/folio"
)

// Compile-time interface verification.
var (
	_ folio.BookService = (*BookService)(nil)
	_ folio.TocService  = (*TocService)(nil)
)

// BookService is a mock implementation of folio.BookService.
type BookService struct {
	SearchFn          func(ctx context.Context, src *folio.Source, keyword string) ([]*folio.Book, error)
	ExploreFn         func(ctx context.Context, src *folio.Source, page int) ([]*folio.Book, error)
	TableOfContentsFn func(ctx context.Context, src *folio.Source, bookURL string) (*folio.TableOfContents, error)
	ContentFn         func(ctx context.Context, src *folio.Source, chapterURL string) (*folio.ChapterContent, error)
}

func (s *BookService) Search(ctx context.Context, src *folio.Source, keyword string) ([]*folio.Book, error) {
	return s.SearchFn(ctx, src, keyword)
}

func (s *BookService) Explore(ctx context.Context, src *folio.Source, page int) ([]*folio.Book, error) {
	return s.ExploreFn(ctx, src, page)
}

func (s *BookService) TableOfContents(ctx context.Context, src *folio.Source, bookURL string) (*folio.TableOfContents, error) {
	return s.TableOfContentsFn(ctx, src, bookURL)
}

func (s *BookService) Content(ctx context.Context, src *folio.Source, chapterURL string) (*folio.ChapterContent, error) {
	return s.ContentFn(ctx, src, chapterURL)
}

// TocService is a mock implementation of folio.TocService.
type TocService struct {
	FindTocFn   func(ctx context.Context, sourceID, bookURL string) (*folio.TableOfContents, error)
	SaveTocFn   func(ctx context.Context, sourceID string, toc *folio.TableOfContents) error
	DeleteTocFn func(ctx context.Context, sourceID, bookURL string) error
}

func (s *TocService) FindToc(ctx context.Context, sourceID, bookURL string) (*folio.TableOfContents, error) {
	return s.FindTocFn(ctx, sourceID, bookURL)
}

func (s *TocService) SaveToc(ctx context.Context, sourceID string, toc *folio.TableOfContents) error {
	return s.SaveTocFn(ctx, sourceID, toc)
}

func (s *TocService) DeleteToc(ctx context.Context, sourceID, bookURL string) error {
	return s.DeleteTocFn(ctx, sourceID, bookURL)
}
