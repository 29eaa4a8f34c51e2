package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/acquire"
	"github.com/fwojciec/folio/bloom"
)

// uniqueFPRate is the false positive rate of the --unique filter.
const uniqueFPRate = 0.001

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	var sources []*folio.Source
	if len(c.Sources) > 0 {
		for _, name := range c.Sources {
			src, err := findSource(deps, name)
			if err != nil {
				return err
			}
			sources = append(sources, src)
		}
	} else {
		enabled := true
		var err error
		sources, err = deps.Sources.FindSources(deps.Ctx, folio.SourceFilter{Enabled: &enabled})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
			return err
		}
	}

	if len(acquire.Order(sources)) == 0 {
		fmt.Fprintln(deps.Stderr, "No searchable sources. Use 'folio source import' to add some.")
		return folio.Errorf(folio.EINVALID, "no searchable sources")
	}

	progress := func(r acquire.SourceResult) {
		if r.Err != nil {
			fmt.Fprintf(deps.Stderr, "  %s: %s\n", r.Source.Name, folio.ErrorMessage(r.Err))
			return
		}
		fmt.Fprintf(deps.Stderr, "  %s: %d results (%s)\n", r.Source.Name, len(r.Books), r.Elapsed.Round(time.Millisecond))
	}

	books := deps.Pipeline.SearchAll(deps.Ctx, sources, c.Keyword, progress, nil).Wait()
	if err := deps.Ctx.Err(); err != nil {
		return folio.Errorf(folio.ECANCELED, "search canceled")
	}

	if c.Unique {
		books = bloom.Unique(books, uniqueFPRate)
	}

	if len(books) == 0 {
		fmt.Fprintf(deps.Stdout, "No books found for %q.\n", c.Keyword)
		return nil
	}
	printBooks(deps.Stdout, books)
	return nil
}

func printBooks(w io.Writer, books []*folio.Book) {
	for _, b := range books {
		author := b.Author
		if author == "" {
			author = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Name, author, b.SourceName, b.URL)
	}
}
