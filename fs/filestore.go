package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/folio"
)

// Ensure FileStore implements folio.ChapterWriter at compile time.
var _ folio.ChapterWriter = (*FileStore)(nil)

// FileStore implements folio.ChapterWriter with atomic update semantics.
// Chapters are saved to a temporary directory, then moved atomically on Commit.
type FileStore struct {
	baseDir   string
	name      string
	converter folio.Converter
	now       func() time.Time
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithConverter converts chapter text that contains markup to Markdown
// before it is written.
func WithConverter(c folio.Converter) Option {
	return func(s *FileStore) {
		s.converter = c
	}
}

// NewFileStore creates a new FileStore.
// baseDir is the parent directory, name is the output directory name.
// Files are saved to baseDir/name.tmp and moved to baseDir/name on Commit.
func NewFileStore(baseDir, name string, opts ...Option) *FileStore {
	s := &FileStore{
		baseDir: baseDir,
		name:    name,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileStore) tempDir() string {
	return filepath.Join(s.baseDir, s.name+".tmp")
}

func (s *FileStore) finalDir() string {
	return filepath.Join(s.baseDir, s.name)
}

// Dir returns the directory chapters are moved to on Commit.
func (s *FileStore) Dir() string {
	return s.finalDir()
}

// Save writes one chapter to the temporary directory.
func (s *FileStore) Save(ctx context.Context, ch *folio.Chapter, content *folio.ChapterContent) error {
	if err := ctx.Err(); err != nil {
		return folio.Errorf(folio.ECANCELED, "save canceled")
	}

	if s.converter != nil && containsMarkup(content.Text) {
		md, err := s.converter.Convert(content.Text)
		if err != nil {
			return err
		}
		converted := *content
		converted.Text = md
		content = &converted
	}

	text, err := FormatChapter(ch, content, s.now())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.tempDir(), 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.tempDir(), ChapterFilename(ch)), []byte(text), 0644)
}

func (s *FileStore) Commit() error {
	// Remove existing final directory if present
	if err := os.RemoveAll(s.finalDir()); err != nil {
		return err
	}

	// Atomically rename temp to final
	return os.Rename(s.tempDir(), s.finalDir())
}

func (s *FileStore) Abort() error {
	return os.RemoveAll(s.tempDir())
}

func containsMarkup(text string) bool {
	i := strings.IndexByte(text, '<')
	return i >= 0 && strings.IndexByte(text[i:], '>') > 0
}
