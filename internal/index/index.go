// Package index maps normalized identifiers onto the editions of a user's
// Hardcover library.
package index

import (
	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

// Entry is the library book and edition an identifier resolved to.
type Entry struct {
	Book    models.UserBook
	Edition models.Edition
	Kind    identifier.Kind
}

// Index is read-only once built and safe for concurrent lookups.
type Index struct {
	entries map[identifier.ID]Entry
}

// Build indexes every edition of books. When two editions share an
// identifier the first one in input order is kept.
func Build(books []models.UserBook) *Index {
	idx := &Index{entries: make(map[identifier.ID]Entry)}
	for _, book := range books {
		for _, ed := range book.Editions {
			idx.add(identifier.KindASIN, ed.ASIN, book, ed)
			idx.add(identifier.KindISBN, ed.ISBN10, book, ed)
			idx.add(identifier.KindISBN, ed.ISBN13, book, ed)
		}
	}
	return idx
}

func (idx *Index) add(kind identifier.Kind, raw string, book models.UserBook, ed models.Edition) {
	value, ok := identifier.Normalize(kind, raw)
	if !ok {
		return
	}
	id := identifier.ID{Kind: kind, Value: value}
	if _, exists := idx.entries[id]; exists {
		return
	}
	idx.entries[id] = Entry{Book: book, Edition: ed, Kind: kind}
}

// Lookup resolves id, normalizing its value first.
func (idx *Index) Lookup(id identifier.ID) (Entry, bool) {
	if idx == nil {
		return Entry{}, false
	}
	value, ok := identifier.Normalize(id.Kind, id.Value)
	if !ok {
		return Entry{}, false
	}
	e, ok := idx.entries[identifier.ID{Kind: id.Kind, Value: value}]
	return e, ok
}

// Len returns the number of indexed identifiers.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
