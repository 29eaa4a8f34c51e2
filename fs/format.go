// Package fs provides file-based storage for downloaded books.
package fs

import (
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/folio"
	"gopkg.in/yaml.v3"
)

// frontmatter is the YAML header of a chapter file.
type frontmatter struct {
	Title      string `yaml:"title"`
	Index      int    `yaml:"index"`
	Source     string `yaml:"source"`
	Pages      int    `yaml:"pages,omitempty"`
	Downloaded string `yaml:"downloaded"`
}

// ChapterFilename returns the file name of a chapter. Names sort in
// chapter order.
func ChapterFilename(ch *folio.Chapter) string {
	return fmt.Sprintf("%04d.md", ch.Index+1)
}

// FormatChapter formats chapter text with YAML frontmatter, followed by
// the chapter name as a heading.
func FormatChapter(ch *folio.Chapter, content *folio.ChapterContent, now time.Time) (string, error) {
	name := content.Name
	if name == "" {
		name = ch.Name
	}

	header, err := yaml.Marshal(frontmatter{
		Title:      name,
		Index:      ch.Index,
		Source:     ch.URL,
		Pages:      content.Pages,
		Downloaded: now.Format("2006-01-02"),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	if name != "" {
		b.WriteString("# ")
		b.WriteString(name)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(content.Text))
	b.WriteString("\n")
	return b.String(), nil
}
