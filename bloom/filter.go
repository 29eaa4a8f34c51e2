// Package bloom provides probabilistic deduplication of search results
// using Bloom filters.
package bloom

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/folio"
)

// Filter wraps a Bloom filter for key deduplication.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected items
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add adds a key to the filter.
func (f *Filter) Add(key string) {
	f.f.AddString(key)
}

// Test returns true if the key might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(key string) bool {
	return f.f.TestString(key)
}

// Seen reports whether key was probably added before and adds it.
func (f *Filter) Seen(key string) bool {
	return f.f.TestOrAddString(key)
}

// EstimatedCount returns the approximate number of items in the filter.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}

// BookKey identifies a book across sources by its name and author,
// ignoring case and surrounding whitespace.
func BookKey(b *folio.Book) string {
	return strings.ToLower(strings.TrimSpace(b.Name)) + "\x00" +
		strings.ToLower(strings.TrimSpace(b.Author))
}

// Unique returns books with duplicates removed, keeping the first
// occurrence. The filter answers for new keys; a probable hit is confirmed
// against the keys kept so far before a book is dropped.
func Unique(books []*folio.Book, fpRate float64) []*folio.Book {
	if len(books) == 0 {
		return books
	}
	f := NewFilter(uint(len(books)), fpRate)
	kept := make(map[string]struct{}, len(books))
	out := make([]*folio.Book, 0, len(books))
	for _, b := range books {
		key := BookKey(b)
		if f.Seen(key) {
			if _, ok := kept[key]; ok {
				continue
			}
		}
		kept[key] = struct{}{}
		out = append(out, b)
	}
	return out
}
