package main_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fwojciec/folio"
	main "github.com/fwojciec/folio/cmd/folio"
	"github.com/fwojciec/folio/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	t.Parallel()

	chapters := threeChapters().Chapters

	t.Run("preloads ahead, saves every chapter and commits", func(t *testing.T) {
		t.Parallel()

		var preloads [][2]int
		cc := &mock.ContentCache{
			LoadFn: func(_ context.Context, index int) (*folio.ChapterContent, error) {
				return &folio.ChapterContent{Text: "text"}, nil
			},
			PreloadFn: func(start, count int) {
				preloads = append(preloads, [2]int{start, count})
			},
		}
		var saved []int
		var committed bool
		w := &mock.ChapterWriter{
			SaveFn: func(_ context.Context, ch *folio.Chapter, _ *folio.ChapterContent) error {
				saved = append(saved, ch.Index)
				return nil
			},
			CommitFn: func() error { committed = true; return nil },
		}
		var progress []folio.DownloadProgress

		n, failed, err := main.Download(context.Background(), cc, chapters, w, 2, func(p folio.DownloadProgress) {
			progress = append(progress, p)
		})

		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Zero(t, failed)
		assert.Equal(t, []int{0, 1, 2}, saved)
		assert.True(t, committed)
		assert.Equal(t, [][2]int{{0, 2}, {1, 2}, {2, 2}}, preloads)
		require.Len(t, progress, 3)
		assert.Equal(t, 3, progress[2].Completed)
		assert.Equal(t, 3, progress[2].Total)
	})

	t.Run("skips failed chapters and still commits", func(t *testing.T) {
		t.Parallel()

		cc := &mock.ContentCache{
			LoadFn: func(_ context.Context, index int) (*folio.ChapterContent, error) {
				if index == 1 {
					return nil, folio.Errorf(folio.EPARSE, "no content")
				}
				return &folio.ChapterContent{Text: "text"}, nil
			},
		}
		var committed bool
		w := &mock.ChapterWriter{
			SaveFn:   func(_ context.Context, _ *folio.Chapter, _ *folio.ChapterContent) error { return nil },
			CommitFn: func() error { committed = true; return nil },
		}
		var errs []error

		n, failed, err := main.Download(context.Background(), cc, chapters, w, 0, func(p folio.DownloadProgress) {
			if p.Error != nil {
				errs = append(errs, p.Error)
			}
		})

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, failed)
		assert.True(t, committed)
		require.Len(t, errs, 1)
		assert.Equal(t, folio.EPARSE, folio.ErrorCode(errs[0]))
	})

	t.Run("aborts when every chapter fails", func(t *testing.T) {
		t.Parallel()

		cc := &mock.ContentCache{
			LoadFn: func(_ context.Context, _ int) (*folio.ChapterContent, error) {
				return nil, folio.Errorf(folio.ENETWORK, "offline")
			},
		}
		var aborted bool
		w := &mock.ChapterWriter{
			AbortFn: func() error { aborted = true; return nil },
		}

		_, failed, err := main.Download(context.Background(), cc, chapters, w, 0, nil)

		require.Error(t, err)
		assert.Equal(t, 3, failed)
		assert.True(t, aborted)
	})

	t.Run("aborts on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var once sync.Once
		cc := &mock.ContentCache{
			LoadFn: func(_ context.Context, _ int) (*folio.ChapterContent, error) {
				once.Do(cancel)
				return &folio.ChapterContent{Text: "text"}, nil
			},
		}
		var aborted bool
		w := &mock.ChapterWriter{
			SaveFn: func(ctx context.Context, _ *folio.Chapter, _ *folio.ChapterContent) error {
				return folio.Errorf(folio.ECANCELED, "save canceled")
			},
			AbortFn: func() error { aborted = true; return nil },
		}

		_, _, err := main.Download(ctx, cc, chapters, w, 0, nil)

		assert.Equal(t, folio.ECANCELED, folio.ErrorCode(err))
		assert.True(t, aborted)
	})
}

func TestDownloadCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("writes one file per chapter into a directory named after the book", func(t *testing.T) {
		t.Parallel()

		src := &folio.Source{ID: "s1", Name: "Alpha"}
		tocs := &mock.TocService{
			FindTocFn: func(_ context.Context, _, _ string) (*folio.TableOfContents, error) {
				return threeChapters(), nil
			},
		}
		var mu sync.Mutex
		books := &mock.BookService{
			ContentFn: func(_ context.Context, _ *folio.Source, chapterURL string) (*folio.ChapterContent, error) {
				mu.Lock()
				defer mu.Unlock()
				return &folio.ChapterContent{Text: "Body of " + chapterURL, Pages: 1}, nil
			},
		}

		out := t.TempDir()
		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  &bytes.Buffer{},
			Sources: singleSource(src),
			Tocs:    tocs,
			Books:   books,
		}

		err := (&main.DownloadCmd{Source: "Alpha", BookURL: "https://alpha.example/book/1", Out: out, Preload: 2}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "Downloaded 3 chapters")

		data, err := os.ReadFile(filepath.Join(out, "Dune", "0002.md"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "# Two")
		assert.Contains(t, string(data), "Body of https://alpha.example/c/1")

		_, err = os.Stat(filepath.Join(out, "Dune.tmp"))
		assert.True(t, os.IsNotExist(err))
	})
}
