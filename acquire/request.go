package acquire

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/fwojciec/folio"
	"golang.org/x/net/html/charset"
)

// requestOptions is the JSON suffix a request URL may carry:
// "https://host/search,{"method":"POST","body":"q=x"}".
type requestOptions struct {
	Method  string       `json:"method"`
	Body    string       `json:"body"`
	Charset string       `json:"charset"`
	Headers folio.Header `json:"headers"`
}

// splitOptions separates a request URL from its JSON options suffix.
// A suffix that is not a valid options object is left in place.
func splitOptions(raw string) (string, *requestOptions) {
	raw = strings.TrimSpace(raw)
	i := strings.Index(raw, ",{")
	if i < 0 || !strings.HasSuffix(raw, "}") {
		return raw, nil
	}
	var opts requestOptions
	if err := json.Unmarshal([]byte(raw[i+1:]), &opts); err != nil {
		return raw, nil
	}
	return strings.TrimSpace(raw[:i]), &opts
}

// newRequest builds the request for raw, a possibly relative URL with an
// optional options suffix, resolved against base.
func newRequest(src *folio.Source, raw, base string) (*folio.Request, error) {
	target, opts := splitOptions(raw)
	target = resolveURL(base, target)
	if target == "" {
		return nil, folio.Errorf(folio.EINVALID, "invalid request URL %q", raw)
	}

	req := &folio.Request{
		URL:      target,
		Header:   src.Header,
		Encoding: src.Encoding,
	}
	if opts != nil {
		req.Method = strings.ToUpper(opts.Method)
		req.Body = opts.Body
		if opts.Charset != "" {
			req.Encoding = opts.Charset
		}
		if len(opts.Headers) > 0 {
			req.Header = src.Header.Merge(opts.Headers)
		}
	}
	return req, nil
}

// resolveURL resolves ref against base, keeping any options suffix of ref.
// Returns "" for empty refs and non-HTTP links (javascript:, mailto:, ...).
func resolveURL(base, ref string) string {
	target, opts := splitOptions(ref)
	if target == "" || isNonHTTPLink(target) {
		return ""
	}

	r, err := url.Parse(target)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil && base != "" {
		r = b.ResolveReference(r)
	}
	r.Fragment = ""

	out := r.String()
	if opts != nil {
		ref = strings.TrimSpace(ref)
		out += ref[strings.Index(ref, ",{"):]
	}
	return out
}

// isNonHTTPLink checks if a href is a link that cannot be fetched.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

// queryEscape escapes keyword for a query string in the source's encoding.
func queryEscape(keyword, encoding string) string {
	if encoding != "" {
		if enc, name := charset.Lookup(encoding); enc != nil && name != "utf-8" {
			if s, err := enc.NewEncoder().String(keyword); err == nil {
				return url.QueryEscape(s)
			}
		}
	}
	return url.QueryEscape(keyword)
}
