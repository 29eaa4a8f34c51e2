package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/cache"
)

// Run executes the explore command.
func (c *ExploreCmd) Run(deps *Dependencies) error {
	src, err := findSource(deps, c.Source)
	if err != nil {
		return err
	}

	books, err := deps.Books.Explore(deps.Ctx, src, c.Page)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}

	if len(books) == 0 {
		fmt.Fprintf(deps.Stdout, "No books on page %d.\n", c.Page)
		return nil
	}
	printBooks(deps.Stdout, books)
	return nil
}

// Run executes the toc command.
func (c *TocCmd) Run(deps *Dependencies) error {
	src, err := findSource(deps, c.Source)
	if err != nil {
		return err
	}

	toc, err := loadToc(deps, src, c.BookURL, c.Refresh)
	if err != nil {
		return err
	}

	for _, ch := range toc.Chapters {
		mark := " "
		if ch.Downloaded {
			mark = "*"
		}
		fmt.Fprintf(deps.Stdout, "%s %4d  %s\n", mark, ch.Index, ch.Name)
	}
	return nil
}

// Run executes the read command.
func (c *ReadCmd) Run(deps *Dependencies) error {
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

	content, err := cc.Load(deps.Ctx, c.Index)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}

	text := content.Text
	if c.Markdown && deps.Converter != nil && strings.Contains(text, "<") {
		md, err := deps.Converter.Convert(text)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
			return err
		}
		text = md
	}

	fmt.Fprintf(deps.Stdout, "%s\n\n%s\n", content.Name, strings.TrimSpace(text))
	return nil
}

// loadToc returns the cached table of contents for a book, fetching and
// caching it when missing or when refresh is set.
func loadToc(deps *Dependencies, src *folio.Source, bookURL string, refresh bool) (*folio.TableOfContents, error) {
	if !refresh {
		toc, err := deps.Tocs.FindToc(deps.Ctx, src.ID, bookURL)
		if err == nil {
			return toc, nil
		}
		if folio.ErrorCode(err) != folio.ENOTFOUND {
			fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
			return nil, err
		}
	}

	toc, err := deps.Books.TableOfContents(deps.Ctx, src, bookURL)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return nil, err
	}

	if err := deps.Tocs.SaveToc(deps.Ctx, src.ID, toc); err != nil {
		fmt.Fprintf(deps.Stderr, "warning: table of contents not cached: %s\n", folio.ErrorMessage(err))
	}
	return toc, nil
}

func newCache(deps *Dependencies, src *folio.Source, bookURL string, toc *folio.TableOfContents) (*cache.Cache, error) {
	opts := []cache.Option{cache.WithStore(deps.Chapters)}
	if deps.CacheSize > 0 {
		opts = append(opts, cache.WithCapacity(deps.CacheSize))
	}
	if deps.Logger != nil {
		opts = append(opts, cache.WithLogger(deps.Logger))
	}
	return cache.New(folio.BookKey(src.ID, bookURL), src, toc.Chapters, deps.Books, opts...)
}
