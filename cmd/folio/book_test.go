package main_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fwojciec/folio"
	main "github.com/fwojciec/folio/cmd/folio"
	"github.com/fwojciec/folio/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleSource(src *folio.Source) *mock.SourceService {
	return &mock.SourceService{
		FindSourcesFn: func(_ context.Context, f folio.SourceFilter) ([]*folio.Source, error) {
			if f.Name != nil && *f.Name == src.Name {
				return []*folio.Source{src}, nil
			}
			return nil, nil
		},
	}
}

func threeChapters() *folio.TableOfContents {
	return &folio.TableOfContents{
		BookURL: "https://alpha.example/book/1",
		Info:    folio.Record{folio.FieldName: "Dune"},
		Chapters: []*folio.Chapter{
			{Index: 0, Name: "One", URL: "https://alpha.example/c/0", Downloaded: true},
			{Index: 1, Name: "Two", URL: "https://alpha.example/c/1"},
			{Index: 2, Name: "Three", URL: "https://alpha.example/c/2"},
		},
	}
}

func TestExploreCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints books from the requested page", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		var gotPage int
		books := &mock.BookService{
			ExploreFn: func(_ context.Context, _ *folio.Source, page int) ([]*folio.Book, error) {
				gotPage = page
				return []*folio.Book{{Name: "Dune", URL: "https://alpha.example/book/1", SourceName: "Alpha"}}, nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Books:   books,
		}

		err := (&main.ExploreCmd{Source: "Alpha", Page: 2}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 2, gotPage)
		assert.Contains(t, stdout.String(), "Dune\t-\tAlpha\thttps://alpha.example/book/1")
	})
}

func TestTocCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("uses the cached table of contents", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		tocs := &mock.TocService{
			FindTocFn: func(_ context.Context, sourceID, bookURL string) (*folio.TableOfContents, error) {
				assert.Equal(t, "s1", sourceID)
				return threeChapters(), nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Tocs:    tocs,
			Books:   &mock.BookService{},
		}

		err := (&main.TocCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1"}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "*    0  One")
		assert.Contains(t, stdout.String(), "     2  Three")
	})

	t.Run("fetches and caches on a miss", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		var saved *folio.TableOfContents
		tocs := &mock.TocService{
			FindTocFn: func(_ context.Context, _, _ string) (*folio.TableOfContents, error) {
				return nil, folio.Errorf(folio.ENOTFOUND, "not cached")
			},
			SaveTocFn: func(_ context.Context, _ string, toc *folio.TableOfContents) error {
				saved = toc
				return nil
			},
		}
		books := &mock.BookService{
			TableOfContentsFn: func(_ context.Context, _ *folio.Source, _ string) (*folio.TableOfContents, error) {
				return threeChapters(), nil
			},
		}

		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  &bytes.Buffer{},
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Tocs:    tocs,
			Books:   books,
		}

		err := (&main.TocCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1"}).Run(deps)

		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Len(t, saved.Chapters, 3)
	})

	t.Run("refetches with --refresh", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		var fetched bool
		tocs := &mock.TocService{
			SaveTocFn: func(_ context.Context, _ string, _ *folio.TableOfContents) error { return nil },
		}
		books := &mock.BookService{
			TableOfContentsFn: func(_ context.Context, _ *folio.Source, _ string) (*folio.TableOfContents, error) {
				fetched = true
				return threeChapters(), nil
			},
		}

		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  &bytes.Buffer{},
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Tocs:    tocs,
			Books:   books,
		}

		err := (&main.TocCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1", Refresh: true}).Run(deps)

		require.NoError(t, err)
		assert.True(t, fetched)
	})
}

func TestReadCmd_Run(t *testing.T) {
	t.Parallel()

	cachedToc := func() *mock.TocService {
		return &mock.TocService{
			FindTocFn: func(_ context.Context, _, _ string) (*folio.TableOfContents, error) {
				return threeChapters(), nil
			},
		}
	}

	t.Run("prints the chapter at index", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		books := &mock.BookService{
			ContentFn: func(_ context.Context, _ *folio.Source, chapterURL string) (*folio.ChapterContent, error) {
				assert.Equal(t, "https://alpha.example/c/1", chapterURL)
				return &folio.ChapterContent{Text: "It was a dark night.", Pages: 1}, nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Tocs:    cachedToc(),
			Books:   books,
		}

		err := (&main.ReadCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1", Index: 1}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, "Two\n\nIt was a dark night.\n", stdout.String())
	})

	t.Run("serves stored chapters without fetching", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		var gotKey folio.CacheKey
		store := &mock.ChapterStore{
			FindChapterContentFn: func(_ context.Context, key folio.CacheKey) (*folio.ChapterContent, error) {
				gotKey = key
				return &folio.ChapterContent{Name: "Two", Text: "Stored."}, nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:      context.Background(),
			Stdout:   stdout,
			Stderr:   &bytes.Buffer{},
			Sources:  singleSource(src),
			Tocs:     cachedToc(),
			Books:    &mock.BookService{},
			Chapters: store,
		}

		err := (&main.ReadCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1", Index: 1}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, folio.CacheKey{Book: "s1|https://alpha.example/book/1", Index: 1, URL: "https://alpha.example/c/1"}, gotKey)
		assert.Contains(t, stdout.String(), "Stored.")
	})

	t.Run("converts markup with --markdown", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		books := &mock.BookService{
			ContentFn: func(_ context.Context, _ *folio.Source, _ string) (*folio.ChapterContent, error) {
				return &folio.ChapterContent{Text: "<p>Hello</p>"}, nil
			},
		}
		conv := &mock.Converter{
			ConvertFn: func(html string) (string, error) {
				return "converted: " + html, nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:       context.Background(),
			Stdout:    stdout,
			Stderr:    &bytes.Buffer{},
			Sources:   singleSource(src),
			Tocs:      cachedToc(),
			Books:     books,
			Converter: conv,
		}

		err := (&main.ReadCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1", Index: 0, Markdown: true}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "converted: <p>Hello</p>")
	})

	t.Run("rejects an index outside the table of contents", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  &bytes.Buffer{},
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Tocs:    cachedToc(),
			Books:   &mock.BookService{},
		}

		err := (&main.ReadCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1", Index: 3}).Run(deps)

		assert.Equal(t, folio.EINVALID, folio.ErrorCode(err))
	})
}
