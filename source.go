package folio

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Search and explore rule fields.
const (
	FieldBookList    = "bookList"
	FieldName        = "name"
	FieldAuthor      = "author"
	FieldBookURL     = "bookUrl"
	FieldCoverURL    = "coverUrl"
	FieldIntro       = "intro"
	FieldKind        = "kind"
	FieldLastChapter = "lastChapter"
	FieldWordCount   = "wordCount"
)

// Book info rule fields. Name, author, intro, kind, coverUrl and lastChapter
// are shared with the search fields.
const (
	FieldBaseRule = "baseRule"
	FieldTocURL   = "tocUrl"
)

// Table of contents rule fields.
const (
	FieldChapterList = "chapterList"
	FieldChapterName = "chapterName"
	FieldChapterURL  = "chapterUrl"
	FieldNextTocURL  = "nextTocUrl"
)

// Content rule fields.
const (
	FieldContent        = "content"
	FieldNextContentURL = "nextContentUrl"
	FieldTitle          = "title"
)

// RuleSet maps a field name to a rule string.
type RuleSet map[string]string

// Get returns the rule for field, or "" when the field has no rule.
func (rs RuleSet) Get(field string) string {
	if rs == nil {
		return ""
	}
	return rs[field]
}

// Source describes one external content site: where to send requests and
// how to extract results from the responses.
//
// JSON tags follow the common book source exchange format so that existing
// source collections can be imported unchanged.
type Source struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"bookSourceName"`
	Group       string `json:"bookSourceGroup,omitempty"`
	URL         string `json:"bookSourceUrl"`
	Comment     string `json:"bookSourceComment,omitempty"`
	Enabled     bool   `json:"enabled"`
	Weight      int    `json:"weight,omitempty"`
	CustomOrder int    `json:"customOrder,omitempty"`

	// RespondTime is the last observed response time in milliseconds.
	// It only affects ordering in multi-source searches.
	RespondTime int64 `json:"respondTime,omitempty"`

	SearchURL  string `json:"searchUrl,omitempty"`
	ExploreURL string `json:"exploreUrl,omitempty"`
	DetailURL  string `json:"detailUrl,omitempty"`
	TocURL     string `json:"tocUrl,omitempty"`
	ContentURL string `json:"contentUrl,omitempty"`

	Header   Header `json:"header,omitempty"`
	Encoding string `json:"charset,omitempty"`

	SearchRules  RuleSet `json:"ruleSearch,omitempty"`
	ExploreRules RuleSet `json:"ruleExplore,omitempty"`
	InfoRules    RuleSet `json:"ruleBookInfo,omitempty"`
	TocRules     RuleSet `json:"ruleToc,omitempty"`
	ContentRules RuleSet `json:"ruleContent,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// UnmarshalJSON decodes a source, treating a missing "enabled" field as true.
func (s *Source) UnmarshalJSON(data []byte) error {
	type source Source
	v := source{Enabled: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Source(v)
	return nil
}

// Validate returns an error if the source contains invalid fields.
func (s *Source) Validate() error {
	if s.Name == "" {
		return Errorf(EINVALID, "source name required")
	}
	if s.URL == "" {
		return Errorf(EINVALID, "source URL required")
	}
	return nil
}

// SourceService represents a service for managing the source catalog.
type SourceService interface {
	// CreateSource creates a new source.
	// Returns ECONFLICT if a source with the same URL exists.
	CreateSource(ctx context.Context, src *Source) error

	// SaveSource creates the source or replaces the one with the same URL.
	SaveSource(ctx context.Context, src *Source) error

	// FindSourceByID retrieves a source by ID.
	// Returns ENOTFOUND if source does not exist.
	FindSourceByID(ctx context.Context, id string) (*Source, error)

	// FindSources retrieves sources matching the filter.
	FindSources(ctx context.Context, filter SourceFilter) ([]*Source, error)

	// DeleteSource permanently removes a source and its cached tables of contents.
	// Returns ENOTFOUND if source does not exist.
	DeleteSource(ctx context.Context, id string) error
}

// SourceFilter represents a filter for FindSources.
type SourceFilter struct {
	ID      *string `json:"id"`
	Name    *string `json:"name"`
	URL     *string `json:"url"`
	Group   *string `json:"group"`
	Enabled *bool   `json:"enabled"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// DecodeError reports a source entry that could not be imported.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return "source " + strconv.Itoa(e.Index) + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeSources decodes a JSON array of sources, or a single source object.
// Malformed or invalid entries are skipped and reported individually; only a
// document that is neither an array nor an object is a fatal error.
func DecodeSources(data []byte) ([]*Source, []*DecodeError, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var one json.RawMessage
		if err := json.Unmarshal(data, &one); err != nil || len(one) == 0 || one[0] != '{' {
			return nil, nil, Errorf(EINVALID, "source document must be a JSON array or object")
		}
		raw = []json.RawMessage{one}
	}

	var sources []*Source
	var errs []*DecodeError
	for i, entry := range raw {
		var src Source
		if err := json.Unmarshal(entry, &src); err != nil {
			errs = append(errs, &DecodeError{Index: i, Err: Errorf(EINVALID, "malformed source: %s", err)})
			continue
		}
		if err := src.Validate(); err != nil {
			errs = append(errs, &DecodeError{Index: i, Err: err})
			continue
		}
		sources = append(sources, &src)
	}
	return sources, errs, nil
}

// EncodeSources encodes sources as an indented JSON array.
// Catalog identifiers are not exported.
func EncodeSources(sources []*Source) ([]byte, error) {
	out := make([]Source, len(sources))
	for i, src := range sources {
		out[i] = *src
		out[i].ID = ""
	}
	return json.MarshalIndent(out, "", "  ")
}
