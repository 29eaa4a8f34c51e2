package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/acquire"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx       context.Context
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
	Sources   folio.SourceService
	Tocs      folio.TocService
	Chapters  folio.ChapterStore
	Books     folio.BookService
	Pipeline  *acquire.Pipeline
	Converter folio.Converter

	// CacheSize is the number of chapters held in memory while reading.
	CacheSize int
}

// CLI defines the command-line interface structure for Kong.
// Global flags can also be set in the YAML config file using the flag name
// as key, e.g. "cache-size: 20".
type CLI struct {
	Config      kong.ConfigFlag `help:"YAML config file"`
	DB          string          `name:"db" env:"FOLIO_DB" help:"Database path (default ~/.folio/folio.db)"`
	Timeout     time.Duration   `default:"30s" help:"Per-fetch and per-script timeout"`
	Concurrency int             `short:"c" default:"5" help:"Sources searched at once"`
	RPS         float64         `name:"rps" default:"2" help:"Requests per second per host, 0 for unlimited"`
	Retries     int             `default:"3" help:"Retries for network failures"`
	CacheSize   int             `default:"10" help:"Chapters held in memory"`
	MaxHops     int             `default:"20" help:"Continuation pages followed per chapter"`
	Browser     bool            `help:"Fetch pages with a headless browser"`
	Extractor   string          `enum:"trafilatura,readability" default:"trafilatura" help:"Main-content extractor for sources without a content rule"`
	Verbose     bool            `short:"v" help:"Log requests and timings to stderr"`

	Source   SourceCmd   `cmd:"" help:"Manage the source catalog"`
	Search   SearchCmd   `cmd:"" help:"Search all enabled sources"`
	Explore  ExploreCmd  `cmd:"" help:"List books from a source's explore page"`
	Toc      TocCmd      `cmd:"" help:"Show the table of contents of a book"`
	Read     ReadCmd     `cmd:"" help:"Print one chapter"`
	Download DownloadCmd `cmd:"" help:"Download every chapter of a book"`
}

// SourceCmd groups the source catalog subcommands.
type SourceCmd struct {
	Import SourceImportCmd `cmd:"" help:"Import sources from a JSON file"`
	Export SourceExportCmd `cmd:"" help:"Export sources as JSON"`
	List   SourceListCmd   `cmd:"" help:"List sources"`
	Delete SourceDeleteCmd `cmd:"" help:"Delete a source and its cached books"`
}

// SourceImportCmd is the "source import" subcommand.
type SourceImportCmd struct {
	File string `arg:"" type:"existingfile" help:"JSON file with one source or an array of sources"`
}

// SourceExportCmd is the "source export" subcommand.
type SourceExportCmd struct {
	File string `arg:"" optional:"" help:"Output file (default stdout)"`
}

// SourceListCmd is the "source list" subcommand.
type SourceListCmd struct {
	Group string `help:"Only list sources in this group"`
}

// SourceDeleteCmd is the "source delete" subcommand.
type SourceDeleteCmd struct {
	Name  string `arg:"" help:"Source name or URL"`
	Force bool   `help:"Confirm deletion"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Keyword string   `arg:"" help:"Search keyword"`
	Sources []string `name:"source" short:"s" help:"Only search these sources (repeatable)"`
	Unique  bool     `help:"Drop books with the same name and author"`
}

// ExploreCmd is the "explore" subcommand.
type ExploreCmd struct {
	Source string `arg:"" help:"Source name or URL"`
	Page   int    `default:"1" help:"Page number"`
}

// TocCmd is the "toc" subcommand.
type TocCmd struct {
	Source  string `arg:"" help:"Source name or URL"`
	BookURL string `arg:"" name:"book-url" help:"Book URL"`
	Refresh bool   `help:"Refetch instead of using the cached table of contents"`
}

// ReadCmd is the "read" subcommand.
type ReadCmd struct {
	Source   string `arg:"" help:"Source name or URL"`
	BookURL  string `arg:"" name:"book-url" help:"Book URL"`
	Index    int    `arg:"" help:"0-based chapter index"`
	Markdown bool   `help:"Convert markup in the chapter to Markdown"`
}

// DownloadCmd is the "download" subcommand.
type DownloadCmd struct {
	Source  string `arg:"" help:"Source name or URL"`
	BookURL string `arg:"" name:"book-url" help:"Book URL"`
	Out     string `short:"o" default:"." help:"Output directory"`
	Preload int    `default:"3" help:"Chapters fetched ahead of the one being written"`
}

// NewParser creates the Kong parser bound to deps. Config files are read in
// order; flags and environment variables take precedence over them.
func NewParser(cli *CLI, deps *Dependencies, stdout, stderr io.Writer, configPaths ...string) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("folio"),
		kong.Description("Search, read and download books from configurable web sources."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Configuration(YAMLResolver, configPaths...),
		kong.Bind(deps),
	)
}
