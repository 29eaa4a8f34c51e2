package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/acquire"
	"github.com/fwojciec/folio/goja"
	"github.com/fwojciec/folio/htmltomarkdown"
	foliohttp "github.com/fwojciec/folio/http"
	"github.com/fwojciec/folio/readability"
	"github.com/fwojciec/folio/retry"
	"github.com/fwojciec/folio/rod"
	"github.com/fwojciec/folio/rule"
	folioslog "github.com/fwojciec/folio/slog"
	"github.com/fwojciec/folio/sqlite"
	"github.com/fwojciec/folio/trafilatura"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config file read when present. Set before calling Run().
	ConfigPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Fetcher used by the acquisition pipeline, closed by Close.
	Fetcher folio.Fetcher
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		ConfigPath: defaultConfigPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.Fetcher != nil {
		_ = m.Fetcher.Close()
	}
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	var configPaths []string
	if m.ConfigPath != "" {
		configPaths = append(configPaths, m.ConfigPath)
	}
	parser, err := NewParser(cli, deps, stdout, stderr, configPaths...)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'folio --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := newLogger(cli.Verbose, stderr)
	deps.Logger = logger
	deps.CacheSize = cli.CacheSize

	dbPath := cli.DB
	if dbPath == "" {
		dbPath = defaultDBPath()
	}
	m.DB = sqlite.NewDB(dbPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set FOLIO_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", dbPath, err)
	}
	defer m.Close()

	deps.Sources = sqlite.NewSourceService(m.DB)
	deps.Tocs = sqlite.NewTocService(m.DB)
	deps.Chapters = sqlite.NewChapterStore(m.DB)

	// Source catalog commands never touch the network.
	if !strings.HasPrefix(kongCtx.Command(), "source") {
		fetcher, err := newFetcher(cli, logger)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed for --browser")
			return fmt.Errorf("failed to start fetcher: %w", err)
		}
		m.Fetcher = fetcher

		engine := folioslog.NewLoggingScriptEngine(goja.NewEngine(goja.WithTimeout(cli.Timeout)), logger)

		pipeline := &acquire.Pipeline{
			Fetcher:        fetcher,
			Interpreter:    rule.NewInterpreter(engine),
			Extractor:      newExtractor(cli.Extractor),
			Concurrency:    cli.Concurrency,
			MaxContentHops: cli.MaxHops,
		}
		deps.Pipeline = pipeline
		deps.Books = folioslog.NewLoggingBookService(pipeline, logger)
		deps.Converter = htmltomarkdown.NewConverter()
	}

	return kongCtx.Run(deps)
}

// newFetcher builds the fetch chain: transport, retry policy, logging.
func newFetcher(cli *CLI, logger *slog.Logger) (folio.Fetcher, error) {
	var base folio.Fetcher
	if cli.Browser {
		f, err := rod.NewFetcher(rod.WithFetchTimeout(cli.Timeout))
		if err != nil {
			return nil, err
		}
		base = f
	} else {
		base = foliohttp.NewFetcher(
			foliohttp.WithTimeout(cli.Timeout),
			foliohttp.WithRateLimit(cli.RPS),
		)
	}

	retrying := retry.NewFetcher(base,
		retry.WithRetries(cli.Retries),
		retry.WithLogger(logger),
	)
	return folioslog.NewLoggingFetcher(retrying, logger), nil
}

func newExtractor(name string) folio.Extractor {
	if name == "readability" {
		return readability.NewExtractor()
	}
	return trafilatura.NewExtractor()
}

func newLogger(verbose bool, w io.Writer) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "folio.db"
	}
	dir := filepath.Join(home, ".folio")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "folio.db")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".folio", "config.yaml")
}
