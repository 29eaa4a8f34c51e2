package mock

import "github.com/fwojciec/folio"

var _ folio.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of folio.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*folio.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*folio.ExtractResult, error) {
	return e.ExtractFn(html)
}
