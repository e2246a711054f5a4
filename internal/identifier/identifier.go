// Package identifier canonicalizes the two external identifier namespaces used
// for matching books: ISBNs and Audible ASINs.
package identifier

import (
	"strings"

	"golang.org/x/text/cases"
)

// Kind names an identifier namespace.
type Kind string

const (
	// KindISBN is a 10 or 13 character book number
	KindISBN Kind = "isbn"
	// KindASIN is an Audible catalog number
	KindASIN Kind = "asin"
)

// ASINLength is the only accepted length for a normalized ASIN.
const ASINLength = 10

// ID is a normalized identifier together with its namespace.
type ID struct {
	Kind  Kind
	Value string
}

func (id ID) String() string {
	return string(id.Kind) + ":" + id.Value
}

// Normalize dispatches to the normalizer for kind. Unknown kinds are rejected.
func Normalize(kind Kind, raw string) (string, bool) {
	switch kind {
	case KindISBN:
		return NormalizeISBN(raw)
	case KindASIN:
		return NormalizeASIN(raw)
	default:
		return "", false
	}
}

// NormalizeISBN keeps digits and X, uppercases and requires a length of 10 or 13.
func NormalizeISBN(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteByte('X')
		}
	}
	s := b.String()
	if len(s) != 10 && len(s) != 13 {
		return "", false
	}
	return s, true
}

// NormalizeASIN keeps ASCII letters and digits, uppercases and requires ASINLength characters.
func NormalizeASIN(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	s := b.String()
	if len(s) != ASINLength {
		return "", false
	}
	return s, true
}

var folder = cases.Fold()

// NormalizeTitle case-folds a title and collapses runs of whitespace so that
// casing and spacing differences in source metadata map to one cache key.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(folder.String(title)), " ")
}
