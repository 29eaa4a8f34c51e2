package folio

import "context"

// Request describes one fetch.
type Request struct {
	URL string

	// Method defaults to GET.
	Method string
	Body   string
	Header Header

	// Encoding is the declared text encoding of the response, e.g. "gbk".
	// When empty the encoding is detected from the response.
	Encoding string
}

// Response is a fetched document.
type Response struct {
	// URL is the final URL after redirects. Relative links in the
	// document resolve against it.
	URL        string
	StatusCode int
	Body       []byte

	// Text is Body decoded to UTF-8.
	Text string
}

// Fetcher retrieves documents.
// Implementations return ENETWORK for timeouts, connection errors and
// non-success statuses, and ECANCELED when ctx is canceled.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)

	// Close releases resources held by the fetcher.
	Close() error
}
