package main

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/fs"
)

// Run executes the download command.
func (c *DownloadCmd) Run(deps *Dependencies) error {
	src, err := findSource(deps, c.Source)
	if err != nil {
		return err
	}

	toc, err := loadToc(deps, src, c.BookURL, false)
	if err != nil {
		return err
	}

	cc, err := newCache(deps, src, c.BookURL, toc)
	if err != nil {
		return err
	}
	defer cc.Close()

	var opts []fs.Option
	if deps.Converter != nil {
		opts = append(opts, fs.WithConverter(deps.Converter))
	}
	store := fs.NewFileStore(c.Out, bookDirName(toc, c.BookURL), opts...)

	progress := func(p folio.DownloadProgress) {
		if p.Error != nil {
			fmt.Fprintf(deps.Stderr, "  [%d/%d] %s: %s\n", p.Completed, p.Total, p.Chapter.Name, folio.ErrorMessage(p.Error))
			return
		}
		fmt.Fprintf(deps.Stderr, "  [%d/%d] %s\n", p.Completed, p.Total, p.Chapter.Name)
	}

	saved, failed, err := Download(deps.Ctx, cc, toc.Chapters, store, c.Preload, progress)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Downloaded %d chapters to %s", saved, store.Dir())
	if failed > 0 {
		fmt.Fprintf(deps.Stdout, " (%d failed)", failed)
	}
	fmt.Fprintln(deps.Stdout)
	return nil
}

// Download loads every chapter through cc, keeping up to preload chapters
// loading ahead, and saves them to w. Chapters that fail are reported and
// skipped. The writer is committed unless ctx ends or every chapter fails,
// in which case it is aborted.
func Download(ctx context.Context, cc folio.ContentCache, chapters []*folio.Chapter, w folio.ChapterWriter, preload int, progress folio.DownloadProgressFunc) (saved, failed int, err error) {
	total := len(chapters)
	for i, ch := range chapters {
		if ctx.Err() != nil {
			_ = w.Abort()
			return saved, failed, folio.Errorf(folio.ECANCELED, "download canceled")
		}
		if preload > 0 {
			cc.Preload(i, preload)
		}

		content, err := cc.Load(ctx, i)
		if err == nil {
			err = w.Save(ctx, ch, content)
		}
		if err != nil {
			if folio.ErrorCode(err) == folio.ECANCELED && ctx.Err() != nil {
				_ = w.Abort()
				return saved, failed, folio.Errorf(folio.ECANCELED, "download canceled")
			}
			failed++
		} else {
			saved++
		}

		if progress != nil {
			progress(folio.DownloadProgress{Chapter: ch, Completed: i + 1, Total: total, Error: err})
		}
	}

	if saved == 0 && total > 0 {
		_ = w.Abort()
		return saved, failed, folio.Errorf(folio.EPARSE, "no chapter could be downloaded")
	}
	if err := w.Commit(); err != nil {
		return saved, failed, err
	}
	return saved, failed, nil
}

// bookDirName names the output directory after the book, falling back to
// the last path segment of its URL.
func bookDirName(toc *folio.TableOfContents, bookURL string) string {
	name := strings.TrimSpace(toc.Info[folio.FieldName])
	if name == "" {
		if u, err := url.Parse(bookURL); err == nil {
			name = path.Base(strings.TrimSuffix(u.Path, "/"))
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "book"
	}
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
}
