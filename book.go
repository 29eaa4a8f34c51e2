package folio

import "context"

// Record maps rule field names to extracted values. A field whose rule
// failed or matched nothing holds "".
type Record map[string]string

// Book is a search or explore result.
type Book struct {
	Name        string `json:"name"`
	Author      string `json:"author,omitempty"`
	URL         string `json:"bookUrl"`
	CoverURL    string `json:"coverUrl,omitempty"`
	Intro       string `json:"intro,omitempty"`
	Kind        string `json:"kind,omitempty"`
	LastChapter string `json:"lastChapter,omitempty"`
	WordCount   string `json:"wordCount,omitempty"`

	// SourceURL and SourceName identify the source the book was found on.
	SourceURL  string `json:"sourceUrl"`
	SourceName string `json:"sourceName"`

	// Fields holds every extracted field, including ones without a typed view.
	Fields Record `json:"fields,omitempty"`
}

// NewBook builds a Book from an extracted record.
func NewBook(rec Record, src *Source) *Book {
	b := &Book{
		Name:        rec[FieldName],
		Author:      rec[FieldAuthor],
		URL:         rec[FieldBookURL],
		CoverURL:    rec[FieldCoverURL],
		Intro:       rec[FieldIntro],
		Kind:        rec[FieldKind],
		LastChapter: rec[FieldLastChapter],
		WordCount:   rec[FieldWordCount],
		Fields:      rec,
	}
	if src != nil {
		b.SourceURL = src.URL
		b.SourceName = src.Name
	}
	return b
}

// Chapter is one entry of a table of contents.
type Chapter struct {
	// Index is the 0-based position in document order. Indexes are dense
	// and unique within one table of contents.
	Index      int    `json:"index"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Downloaded bool   `json:"downloaded"`
}

// TableOfContents is the chapter list of one book on one source.
type TableOfContents struct {
	BookURL  string     `json:"bookUrl"`
	TocURL   string     `json:"tocUrl"`
	Info     Record     `json:"info,omitempty"`
	Chapters []*Chapter `json:"chapters"`
}

// ChapterContent is the assembled text of a chapter.
type ChapterContent struct {
	Name string `json:"name"`
	Text string `json:"text"`

	// Pages is the number of documents fetched to assemble Text.
	Pages int `json:"pages"`
}

// BookService drives searches and retrieval against one source at a time.
type BookService interface {
	// Search runs the source's search endpoint for keyword.
	// Returns EPARSE if the result list could not be located.
	Search(ctx context.Context, src *Source, keyword string) ([]*Book, error)

	// Explore lists books from the source's explore endpoint.
	Explore(ctx context.Context, src *Source, page int) ([]*Book, error)

	// TableOfContents fetches the chapter list for a book.
	// Returns EPARSE if the chapter list could not be located.
	TableOfContents(ctx context.Context, src *Source, bookURL string) (*TableOfContents, error)

	// Content fetches a chapter, following continuation pages.
	// Returns EPARSE if the first page has no content.
	Content(ctx context.Context, src *Source, chapterURL string) (*ChapterContent, error)
}

// TocService caches the association between a book and its chapter list.
type TocService interface {
	// FindToc returns the cached table of contents for a book on a source.
	// Returns ENOTFOUND if nothing is cached.
	FindToc(ctx context.Context, sourceID, bookURL string) (*TableOfContents, error)

	// SaveToc stores a table of contents, replacing any previous one.
	SaveToc(ctx context.Context, sourceID string, toc *TableOfContents) error

	// DeleteToc removes a cached table of contents and its stored chapters.
	DeleteToc(ctx context.Context, sourceID, bookURL string) error
}

// BookKey identifies a book on a source in chapter stores.
func BookKey(sourceID, bookURL string) string {
	return sourceID + "|" + bookURL
}
