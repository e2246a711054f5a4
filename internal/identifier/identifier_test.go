package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"isbn13 with hyphens", "978-0-7475-3269-9", "9780747532699", true},
		{"isbn10 lower x", "0-8044-2957-x", "080442957X", true},
		{"spaces and prefix", "ISBN 0306406152", "0306406152", true},
		{"too short", "12345", "", false},
		{"eleven digits", "12345678901", "", false},
		{"empty", "", "", false},
		{"letters only", "abcdefghij", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeISBN(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeASIN(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"already canonical", "B002V0QK4C", "B002V0QK4C", true},
		{"lower case with spaces", " b002v0qk4c ", "B002V0QK4C", true},
		{"punctuation stripped", "B0-02V0.QK4C", "B002V0QK4C", true},
		{"too long", "B002V0QK4CX", "", false},
		{"too short", "B002V", "", false},
		{"non ascii dropped", "B002V0QK4Ä", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeASIN(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"978-0-7475-3269-9", "0-8044-2957-x", "B002V0QK4C", "b002v0qk4c",
		"", "x", "XXXXXXXXXX", "12 34 56 78 90", "äöü", "ISBN: 0306406152",
	}

	for _, kind := range []Kind{KindISBN, KindASIN} {
		for _, in := range inputs {
			first, ok := Normalize(kind, in)
			if !ok {
				assert.Empty(t, first)
				continue
			}
			second, ok2 := Normalize(kind, first)
			assert.True(t, ok2, "%s %q", kind, in)
			assert.Equal(t, first, second, "%s %q", kind, in)
		}
	}
}

func TestNormalizeUnknownKind(t *testing.T) {
	got, ok := Normalize(Kind("doi"), "10.1000/182")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "harry potter and the philosopher's stone", NormalizeTitle("  Harry Potter and the   Philosopher's Stone "))
	assert.Equal(t, NormalizeTitle("STRASSE"), NormalizeTitle("straße"))
	assert.Equal(t, "", NormalizeTitle("   "))
}

func TestValidISBN(t *testing.T) {
	assert.True(t, ValidISBN("0306406152"))
	assert.True(t, ValidISBN("080442957X"))
	assert.True(t, ValidISBN("9780747532699"))
	assert.False(t, ValidISBN("0306406153"))
	assert.False(t, ValidISBN("9780747532690"))
	assert.False(t, ValidISBN("X306406152"))
	assert.False(t, ValidISBN("123"))
}

func TestISBNConversion(t *testing.T) {
	assert.Equal(t, "9780306406157", ISBN10To13("0306406152"))
	assert.Equal(t, "9780201616224", ISBN10To13("020161622X"))
	assert.Equal(t, "", ISBN10To13("123"))
	assert.Equal(t, "0306406152", ISBN13To10("9780306406157"))
	assert.Equal(t, "020161622X", ISBN13To10("9780201616224"))
	assert.Equal(t, "", ISBN13To10("9790000000000"))
	assert.Equal(t, "0306406152", ISBN13To10(ISBN10To13("0306406152")))
}

func TestISBNForms(t *testing.T) {
	assert.Equal(t, []string{"0306406152", "9780306406157"}, ISBNForms("0306406152"))
	assert.Equal(t, []string{"9780306406157", "0306406152"}, ISBNForms("9780306406157"))
	assert.Equal(t, []string{"9790000000000"}, ISBNForms("9790000000000"))
	assert.Equal(t, []string{"0306406153"}, ISBNForms("0306406153"), "bad checksum is searched as printed")
}
