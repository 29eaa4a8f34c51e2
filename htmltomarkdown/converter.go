package htmltomarkdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/fwojciec/folio"
)

var _ folio.Converter = (*Converter)(nil)

var (
	// Sites that lay out chapters with <br> runs instead of paragraphs.
	breakRun = regexp.MustCompile(`(?i)(?:<br\s*/?>\s*){2,}`)
	blankRun = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
)

// Converter renders chapter markup as Markdown prose.
type Converter struct {
	conv *converter.Converter
}

// NewConverter returns a Converter for chapter text. Only the base and
// CommonMark rules are loaded; tables and other non-prose markup are
// rendered as their text.
func NewConverter() *Converter {
	return &Converter{conv: converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)}
}

// Convert renders one chapter. Two or more consecutive <br> elements start a
// new paragraph, and the result never has more than one blank line in a row.
func (c *Converter) Convert(html string) (string, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", folio.Errorf(folio.EINVALID, "no chapter markup to convert")
	}

	md, err := c.conv.ConvertString(breakRun.ReplaceAllString(html, "</p><p>"))
	if err != nil {
		return "", folio.Errorf(folio.EPARSE, "convert chapter: %v", err)
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(md, "\n\n")), nil
}
