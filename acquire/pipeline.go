// Package acquire drives source-described searches, table of contents
// extraction and paginated content assembly over a folio.Fetcher.
package acquire

import (
	"context"
	"strings"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/rule"
)

// Defaults for Pipeline limits.
const (
	DefaultConcurrency    = 5
	DefaultMaxContentHops = 20
	DefaultMaxTocPages    = 20
)

var _ folio.BookService = (*Pipeline)(nil)

// Fields extracted for every search or explore result.
var searchFields = []string{
	folio.FieldName,
	folio.FieldAuthor,
	folio.FieldBookURL,
	folio.FieldCoverURL,
	folio.FieldIntro,
	folio.FieldKind,
	folio.FieldLastChapter,
	folio.FieldWordCount,
}

// Fields extracted from a book detail page.
var infoFields = []string{
	folio.FieldName,
	folio.FieldAuthor,
	folio.FieldIntro,
	folio.FieldKind,
	folio.FieldCoverURL,
	folio.FieldLastChapter,
	folio.FieldTocURL,
}

// Pipeline implements folio.BookService by fetching documents and applying
// a source's rules to them. The pipeline never retries; wrap the Fetcher to
// add a retry policy.
type Pipeline struct {
	Fetcher     folio.Fetcher
	Interpreter *rule.Interpreter

	// Extractor, if set, supplies chapter text for sources without a
	// content rule.
	Extractor folio.Extractor

	// Concurrency bounds the number of sources searched at once by SearchAll.
	Concurrency int

	// MaxContentHops bounds the continuation pages followed per chapter.
	MaxContentHops int

	// MaxTocPages bounds the pages of a paginated table of contents.
	MaxTocPages int
}

func (p *Pipeline) interpreter() *rule.Interpreter {
	if p.Interpreter == nil {
		return rule.NewInterpreter(nil)
	}
	return p.Interpreter
}

func (p *Pipeline) concurrency() int {
	if p.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return p.Concurrency
}

func (p *Pipeline) maxContentHops() int {
	if p.MaxContentHops <= 0 {
		return DefaultMaxContentHops
	}
	return p.MaxContentHops
}

func (p *Pipeline) maxTocPages() int {
	if p.MaxTocPages <= 0 {
		return DefaultMaxTocPages
	}
	return p.MaxTocPages
}

// Search runs the source's search endpoint for keyword. The search template
// sees {"key": <escaped keyword>, "keyword": <keyword>, "page": 1}.
func (p *Pipeline) Search(ctx context.Context, src *folio.Source, keyword string) ([]*folio.Book, error) {
	if src.SearchURL == "" {
		return nil, folio.Errorf(folio.EINVALID, "source %q has no search URL", src.Name)
	}
	data := map[string]any{
		"key":     queryEscape(keyword, src.Encoding),
		"keyword": keyword,
		"page":    1,
	}
	return p.list(ctx, src, rule.Expand(src.SearchURL, data), src.SearchRules)
}

// Explore lists books from the source's explore endpoint. The explore URL
// may list several "title::url" entries; the first one is used. Explore
// rules fall back to search rules when the source defines none.
func (p *Pipeline) Explore(ctx context.Context, src *folio.Source, page int) ([]*folio.Book, error) {
	target := firstExploreURL(src.ExploreURL)
	if target == "" {
		return nil, folio.Errorf(folio.EINVALID, "source %q has no explore URL", src.Name)
	}
	if page < 1 {
		page = 1
	}
	rules := src.ExploreRules
	if len(rules) == 0 {
		rules = src.SearchRules
	}
	return p.list(ctx, src, rule.Expand(target, map[string]any{"page": page}), rules)
}

func firstExploreURL(explore string) string {
	for _, line := range strings.FieldsFunc(explore, func(r rune) bool { return r == '\n' }) {
		for _, entry := range strings.Split(line, "&&") {
			entry = strings.TrimSpace(entry)
			if _, u, ok := strings.Cut(entry, "::"); ok {
				entry = strings.TrimSpace(u)
			}
			if entry != "" {
				return entry
			}
		}
	}
	return ""
}

// list fetches a result page and extracts one book per bookList node.
// Results without a name or book URL are dropped.
func (p *Pipeline) list(ctx context.Context, src *folio.Source, target string, rules folio.RuleSet) ([]*folio.Book, error) {
	listRule := rules.Get(folio.FieldBookList)
	if listRule == "" {
		return nil, folio.Errorf(folio.EINVALID, "source %q has no bookList rule", src.Name)
	}

	doc, err := p.fetchDocument(ctx, src, target, src.URL)
	if err != nil {
		return nil, err
	}

	in := p.interpreter()
	items, err := in.Elements(ctx, doc, listRule)
	if err != nil && folio.ErrorCode(err) == folio.ECANCELED {
		return nil, err
	}
	if len(items) == 0 {
		return nil, requiredFieldError(err, "bookList matched nothing on %s", doc.BaseURL())
	}

	books := make([]*folio.Book, 0, len(items))
	for _, item := range items {
		rec, err := in.Fields(ctx, item, rules, searchFields...)
		if err != nil {
			return nil, err
		}
		rec[folio.FieldBookURL] = resolveURL(doc.BaseURL(), rec[folio.FieldBookURL])
		rec[folio.FieldCoverURL] = resolveURL(doc.BaseURL(), rec[folio.FieldCoverURL])
		if rec[folio.FieldName] == "" || rec[folio.FieldBookURL] == "" {
			continue
		}
		books = append(books, folio.NewBook(rec, src))
	}
	return books, nil
}

// TableOfContents fetches a book's detail page, applies the optional info
// rules and extracts the chapter list, following nextTocUrl pages.
// Chapter indexes are assigned densely in document order.
func (p *Pipeline) TableOfContents(ctx context.Context, src *folio.Source, bookURL string) (*folio.TableOfContents, error) {
	listRule := src.TocRules.Get(folio.FieldChapterList)
	if listRule == "" {
		return nil, folio.Errorf(folio.EINVALID, "source %q has no chapterList rule", src.Name)
	}

	target := bookURL
	if src.DetailURL != "" {
		target = rule.Expand(src.DetailURL, map[string]any{"bookUrl": bookURL})
	}
	doc, err := p.fetchDocument(ctx, src, target, src.URL)
	if err != nil {
		return nil, err
	}

	toc := &folio.TableOfContents{BookURL: bookURL, TocURL: doc.BaseURL()}
	in := p.interpreter()

	if len(src.InfoRules) > 0 {
		base := doc
		if baseRule := src.InfoRules.Get(folio.FieldBaseRule); baseRule != "" {
			els, err := in.Elements(ctx, doc, baseRule)
			if err != nil && folio.ErrorCode(err) == folio.ECANCELED {
				return nil, err
			}
			if len(els) > 0 {
				base = els[0]
			}
		}
		info, err := in.Fields(ctx, base, src.InfoRules, infoFields...)
		if err != nil {
			return nil, err
		}
		info[folio.FieldCoverURL] = resolveURL(doc.BaseURL(), info[folio.FieldCoverURL])
		toc.Info = info
	}

	tocURL := toc.Info[folio.FieldTocURL]
	if tocURL == "" && src.TocURL != "" {
		if tocURL, err = in.Expand(ctx, src.TocURL, doc); err != nil {
			return nil, err
		}
	}
	if tocURL = resolveURL(doc.BaseURL(), tocURL); tocURL != "" && tocURL != doc.BaseURL() {
		if doc, err = p.fetchDocument(ctx, src, tocURL, doc.BaseURL()); err != nil {
			return nil, err
		}
		toc.TocURL = doc.BaseURL()
	}

	chapters, next, err := p.chapters(ctx, src, doc)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, folio.Errorf(folio.EPARSE, "chapterList matched nothing on %s", doc.BaseURL())
	}

	visited := map[string]bool{toc.TocURL: true}
	for pages := 1; next != "" && !visited[next] && pages < p.maxTocPages(); pages++ {
		if err := ctx.Err(); err != nil {
			return nil, folio.Errorf(folio.ECANCELED, "table of contents canceled")
		}
		visited[next] = true
		page, err := p.fetchDocument(ctx, src, next, doc.BaseURL())
		if err != nil {
			return nil, err
		}
		visited[page.BaseURL()] = true

		var more []*folio.Chapter
		more, next, err = p.chapters(ctx, src, page)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, more...)
		doc = page
	}

	for i, ch := range chapters {
		ch.Index = i
	}
	toc.Chapters = chapters
	return toc, nil
}

// chapters extracts the chapter entries of one toc page and its next page link.
func (p *Pipeline) chapters(ctx context.Context, src *folio.Source, doc rule.Value) ([]*folio.Chapter, string, error) {
	in := p.interpreter()
	items, err := in.Elements(ctx, doc, src.TocRules.Get(folio.FieldChapterList))
	if err != nil && folio.ErrorCode(err) == folio.ECANCELED {
		return nil, "", err
	}

	var chapters []*folio.Chapter
	for _, item := range items {
		rec, err := in.Fields(ctx, item, src.TocRules, folio.FieldChapterName, folio.FieldChapterURL)
		if err != nil {
			return nil, "", err
		}
		u := resolveURL(doc.BaseURL(), rec[folio.FieldChapterURL])
		if u == "" {
			continue
		}
		chapters = append(chapters, &folio.Chapter{Name: rec[folio.FieldChapterName], URL: u})
	}

	next, err := in.String(ctx, doc, src.TocRules.Get(folio.FieldNextTocURL))
	if err != nil && folio.ErrorCode(err) == folio.ECANCELED {
		return nil, "", err
	}
	return chapters, resolveURL(doc.BaseURL(), firstLine(next)), nil
}

// Content fetches a chapter and follows nextContentUrl links, appending each
// page's text, until the link is empty, revisits a page or the hop cap is
// reached. Pages are joined with newlines.
func (p *Pipeline) Content(ctx context.Context, src *folio.Source, chapterURL string) (*folio.ChapterContent, error) {
	target := chapterURL
	if src.ContentURL != "" {
		target = rule.Expand(src.ContentURL, map[string]any{"chapterUrl": chapterURL})
	}

	content := &folio.ChapterContent{}
	var parts []string
	visited := make(map[string]bool)
	base := src.URL

	for hops := 0; ; hops++ {
		if err := ctx.Err(); err != nil {
			return nil, folio.Errorf(folio.ECANCELED, "content canceled")
		}

		doc, err := p.fetchDocument(ctx, src, target, base)
		if err != nil {
			return nil, err
		}
		visited[target] = true
		visited[doc.BaseURL()] = true
		content.Pages++

		page, err := p.contentPage(ctx, src, doc, hops == 0)
		if err != nil {
			return nil, err
		}
		if hops == 0 {
			content.Name = page.title
		}
		if page.text != "" {
			parts = append(parts, page.text)
		}

		next := resolveURL(doc.BaseURL(), page.next)
		if next == "" || visited[next] || hops >= p.maxContentHops() {
			break
		}
		target, base = next, doc.BaseURL()
	}

	content.Text = strings.Join(parts, "\n")
	return content, nil
}

// contentFragment is one page of a chapter. next is the continuation link,
// consumed by Content and never exposed.
type contentFragment struct {
	title string
	text  string
	next  string
}

func (p *Pipeline) contentPage(ctx context.Context, src *folio.Source, doc rule.Value, first bool) (*contentFragment, error) {
	in := p.interpreter()
	contentRule := src.ContentRules.Get(folio.FieldContent)

	var frag contentFragment
	var err error
	if contentRule == "" {
		if p.Extractor == nil || doc.Kind() != rule.KindMarkup {
			return nil, folio.Errorf(folio.EINVALID, "source %q has no content rule", src.Name)
		}
		res, xerr := p.Extractor.Extract(doc.HTML())
		if xerr != nil {
			return nil, folio.Errorf(folio.EPARSE, "extract content: %v", xerr)
		}
		frag.title, frag.text = res.Title, strings.TrimSpace(res.Text)
	} else {
		frag.text, err = in.String(ctx, doc, contentRule)
		if folio.ErrorCode(err) == folio.ECANCELED {
			return nil, err
		}
	}
	if first && frag.text == "" {
		return nil, requiredFieldError(err, "content matched nothing on %s", doc.BaseURL())
	}

	fields, ferr := in.Fields(ctx, doc, src.ContentRules, folio.FieldTitle, folio.FieldNextContentURL)
	if ferr != nil {
		return nil, ferr
	}
	if fields[folio.FieldTitle] != "" {
		frag.title = fields[folio.FieldTitle]
	}
	frag.next = firstLine(fields[folio.FieldNextContentURL])
	return &frag, nil
}

// fetchDocument fetches raw (resolved against base) and parses the response.
func (p *Pipeline) fetchDocument(ctx context.Context, src *folio.Source, raw, base string) (rule.Value, error) {
	req, err := newRequest(src, raw, base)
	if err != nil {
		return rule.Value{}, err
	}
	resp, err := p.Fetcher.Fetch(ctx, req)
	if err != nil {
		return rule.Value{}, err
	}
	return rule.Parse(resp.Text, resp.URL)
}

// requiredFieldError reports a required rule that produced nothing. Script
// failures keep their classification; everything else is EPARSE.
func requiredFieldError(err error, format string, args ...any) error {
	if folio.ErrorCode(err) == folio.ESCRIPT {
		return err
	}
	return folio.Errorf(folio.EPARSE, format, args...)
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(s)
}
