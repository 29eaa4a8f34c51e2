// Package readability locates chapter text on pages that have no content
// rule, using go-readability.
package readability

import (
	"strings"

	"github.com/fwojciec/folio"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements folio.Extractor at compile time.
var _ folio.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content.
func (e *Extractor) Extract(rawHTML string) (*folio.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, folio.Errorf(folio.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, folio.Errorf(folio.EPARSE, "extract main content: %v", err)
	}

	var lines []string
	for _, line := range strings.Split(article.TextContent, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return &folio.ExtractResult{
		Title:       article.Title,
		ContentHTML: article.Content,
		Text:        strings.Join(lines, "\n"),
	}, nil
}
