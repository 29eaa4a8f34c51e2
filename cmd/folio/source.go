package main

import (
	"fmt"
	"os"

	"github.com/fwojciec/folio"
)

// Run executes the source import command.
func (c *SourceImportCmd) Run(deps *Dependencies) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	sources, decodeErrs, err := folio.DecodeSources(data)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}
	for _, e := range decodeErrs {
		fmt.Fprintf(deps.Stderr, "skipped: %s\n", e.Error())
	}

	imported := 0
	for _, src := range sources {
		if err := deps.Sources.SaveSource(deps.Ctx, src); err != nil {
			fmt.Fprintf(deps.Stderr, "skipped %q: %s\n", src.Name, folio.ErrorMessage(err))
			continue
		}
		imported++
	}

	fmt.Fprintf(deps.Stdout, "Imported %d sources (%d skipped)\n", imported, len(sources)+len(decodeErrs)-imported)
	return nil
}

// Run executes the source export command.
func (c *SourceExportCmd) Run(deps *Dependencies) error {
	sources, err := deps.Sources.FindSources(deps.Ctx, folio.SourceFilter{})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}

	data, err := folio.EncodeSources(sources)
	if err != nil {
		return err
	}

	if c.File == "" {
		_, err = fmt.Fprintln(deps.Stdout, string(data))
		return err
	}
	if err := os.WriteFile(c.File, append(data, '\n'), 0644); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	fmt.Fprintf(deps.Stderr, "Exported %d sources to %s\n", len(sources), c.File)
	return nil
}

// Run executes the source list command.
func (c *SourceListCmd) Run(deps *Dependencies) error {
	filter := folio.SourceFilter{}
	if c.Group != "" {
		filter.Group = &c.Group
	}

	sources, err := deps.Sources.FindSources(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}

	if len(sources) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources found. Use 'folio source import' to add some.")
		return nil
	}

	for _, src := range sources {
		state := "on "
		if !src.Enabled {
			state = "off"
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %s  %s\n", state, src.Name, src.URL, src.Group)
	}

	return nil
}

// Run executes the source delete command.
func (c *SourceDeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return folio.Errorf(folio.EINVALID, "use --force to confirm deletion")
	}

	src, err := findSource(deps, c.Name)
	if err != nil {
		return err
	}

	if err := deps.Sources.DeleteSource(deps.Ctx, src.ID); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Deleted source %q\n", src.Name)
	return nil
}

// findSource looks a source up by name, then by URL.
func findSource(deps *Dependencies, nameOrURL string) (*folio.Source, error) {
	sources, err := deps.Sources.FindSources(deps.Ctx, folio.SourceFilter{Name: &nameOrURL})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
		return nil, err
	}
	if len(sources) == 0 {
		sources, err = deps.Sources.FindSources(deps.Ctx, folio.SourceFilter{URL: &nameOrURL})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", folio.ErrorMessage(err))
			return nil, err
		}
	}
	if len(sources) == 0 {
		fmt.Fprintf(deps.Stderr, "error: source %q not found. Use 'folio source list' to see available sources.\n", nameOrURL)
		return nil, folio.Errorf(folio.ENOTFOUND, "source %q not found", nameOrURL)
	}
	return sources[0], nil
}
