package folio

// ExtractResult holds the main content of a page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// ContentHTML is the main content as clean HTML.
	ContentHTML string

	// Text is the main content as plain text, paragraphs separated by newlines.
	Text string
}

// Extractor locates the main content of pages that have no content rule.
type Extractor interface {
	// Extract processes raw HTML and returns the main content with
	// navigation, footers and other boilerplate removed.
	Extract(html string) (*ExtractResult, error)
}
