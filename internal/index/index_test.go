package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

func library() []models.UserBook {
	return []models.UserBook{
		{
			ID: 10, BookID: 100, Title: "The Hobbit",
			Editions: []models.Edition{
				{ID: 1, ISBN10: "0261102214", ISBN13: "9780261102217", Pages: 310},
				{ID: 2, ASIN: "b00abc1234", AudioSeconds: 36000},
				{ID: 3, ISBN13: "978-0-261-10221-7", Pages: 300},
			},
		},
		{
			ID: 20, BookID: 200, Title: "Dune",
			Editions: []models.Edition{
				{ID: 4, ISBN13: "9780441013593", ASIN: "B00ABC1234"},
				{ID: 5, ISBN10: "not-an-isbn"},
			},
		},
	}
}

func TestBuildAndLookup(t *testing.T) {
	idx := Build(library())

	tests := []struct {
		name        string
		id          identifier.ID
		wantBook    int
		wantEdition int
	}{
		{"isbn10", identifier.ID{Kind: identifier.KindISBN, Value: "0-261-10221-4"}, 10, 1},
		{"isbn13 first wins", identifier.ID{Kind: identifier.KindISBN, Value: "9780261102217"}, 10, 1},
		{"asin first wins across books", identifier.ID{Kind: identifier.KindASIN, Value: "B00ABC1234"}, 10, 2},
		{"asin lowercase query", identifier.ID{Kind: identifier.KindASIN, Value: "b00abc1234"}, 10, 2},
		{"second book", identifier.ID{Kind: identifier.KindISBN, Value: "9780441013593"}, 20, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := idx.Lookup(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.wantBook, e.Book.ID)
			assert.Equal(t, tt.wantEdition, e.Edition.ID)
			assert.Equal(t, tt.id.Kind, e.Kind)
		})
	}

	// 0261102214, 9780261102217, B00ABC1234, 9780441013593
	assert.Equal(t, 4, idx.Len())
}

func TestLookupMisses(t *testing.T) {
	idx := Build(library())

	_, ok := idx.Lookup(identifier.ID{Kind: identifier.KindISBN, Value: "9780747532699"})
	assert.False(t, ok)

	_, ok = idx.Lookup(identifier.ID{Kind: identifier.KindISBN, Value: "garbage"})
	assert.False(t, ok)

	// ASIN values are not matched against the ISBN key space
	_, ok = idx.Lookup(identifier.ID{Kind: identifier.KindISBN, Value: "B00ABC1234"})
	assert.False(t, ok)

	var nilIdx *Index
	_, ok = nilIdx.Lookup(identifier.ID{Kind: identifier.KindISBN, Value: "0261102214"})
	assert.False(t, ok)
	assert.Equal(t, 0, nilIdx.Len())
}

func TestBuildEmpty(t *testing.T) {
	assert.Equal(t, 0, Build(nil).Len())
}
