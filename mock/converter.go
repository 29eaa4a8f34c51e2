package mock

import "github.com/fwojciec/folio"

var _ folio.Converter = (*Converter)(nil)

// Converter is a mock implementation of folio.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
