package rule

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/folio"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/net/html"
)

// Parse wraps a decoded document. Text whose first non-whitespace character
// is '{' or '[' is parsed as JSON, anything else as HTML.
// Returns EPARSE if the document cannot be parsed as the detected kind.
func Parse(text, baseURL string) (Value, error) {
	if isStructured(text) {
		data, err := oj.ParseString(text)
		if err != nil {
			return Value{}, folio.Errorf(folio.EPARSE, "invalid JSON document: %v", err)
		}
		return Data(baseURL, data), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return Value{}, folio.Errorf(folio.EPARSE, "invalid HTML document: %v", err)
	}
	return Value{kind: KindMarkup, sel: doc.Selection, baseURL: baseURL}, nil
}

func isStructured(text string) bool {
	s := strings.TrimLeftFunc(text, unicode.IsSpace)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// looksLikeDocument reports whether a scalar carries markup or JSON worth
// parsing before a terminal is applied to it.
func looksLikeDocument(s string) bool {
	return isStructured(s) || strings.Contains(s, "<")
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tr": true, "ul": true,
}

// visibleText returns the text of n and its descendants, skipping scripts
// and styles. Block elements start new lines; whitespace within a line is
// collapsed and blank lines are dropped.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return normalizeLines(b.String())
}

// ownText returns the concatenated text of n's direct text children.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return collapse(b.String())
}

// textNodes returns the non-blank direct text children of n.
func textNodes(n *html.Node) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if s := collapse(c.Data); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapse(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// selectMarkup applies a selector to every node of sel, returning matching
// descendants in document order.
func selectMarkup(sel *goquery.Selection, s *step) *goquery.Selection {
	var match func(*goquery.Selection) bool
	switch s.selector {
	case selectClass:
		names := strings.Fields(s.name)
		match = func(e *goquery.Selection) bool {
			for _, name := range names {
				if !e.HasClass(name) {
					return false
				}
			}
			return len(names) > 0
		}
	case selectID:
		match = func(e *goquery.Selection) bool {
			id, ok := e.Attr("id")
			return ok && id == s.name
		}
	case selectTag:
		tag := strings.ToLower(s.name)
		match = func(e *goquery.Selection) bool {
			return goquery.NodeName(e) == tag
		}
	case selectText:
		match = func(e *goquery.Selection) bool {
			return strings.Contains(ownText(e.Nodes[0]), s.name)
		}
	default:
		return sel.Slice(0, 0)
	}
	return sel.Find("*").FilterFunction(func(_ int, e *goquery.Selection) bool {
		return match(e)
	})
}
