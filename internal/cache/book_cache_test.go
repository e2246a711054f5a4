package cache

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/drallgood/abs-hardcover-progress/internal/database"
	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) (*gorm.DB, database.Config) {
	t.Helper()
	cfg := database.Config{Type: database.TypeSQLite, Path: filepath.Join(t.TempDir(), "cache.db")}
	db, err := database.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db, cfg
}

func newTestCache(t *testing.T, opts ...Option) *BookCache {
	t.Helper()
	db, cfg := openTestDB(t)
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithStorageSize(func() int64 { return database.FileSize(cfg) }),
	}, opts...)
	c, err := NewBookCache(db, nil, opts...)
	require.NoError(t, err)
	return c
}

func hobbitASIN() Key {
	return Key{UserID: "u1", Kind: identifier.KindASIN, Identifier: "b00abc1234", Title: "The Hobbit"}
}

func TestVariantRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, ok, err := c.GetVariant(ctx, hobbitASIN())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 42, "J.R.R. Tolkien"))
	id, ok, err := c.GetVariant(ctx, hobbitASIN())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 43, ""))
	id, _, _ = c.GetVariant(ctx, hobbitASIN())
	assert.Equal(t, 43, id)

	recs, err := c.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Author)
	assert.Equal(t, "J.R.R. Tolkien", *recs[0].Author, "empty author keeps the stored one")
}

func TestKeyIsNormalized(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.PutVariant(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "978-0-7475-3269-9", Title: "  Harry   POTTER "}, 5, ""))

	id, ok, err := c.GetVariant(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "9780747532699", Title: "harry potter"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, id)

	_, ok, err = c.GetVariant(ctx, Key{UserID: "u2", Kind: identifier.KindISBN, Identifier: "9780747532699", Title: "harry potter"})
	require.NoError(t, err)
	assert.False(t, ok, "rows are scoped per user")
}

func TestInvalidKey(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	bad := Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "12345", Title: "x"}
	assert.ErrorIs(t, c.PutProgress(ctx, bad, 10), ErrInvalidKey)
	assert.ErrorIs(t, c.PutVariant(ctx, bad, 1, ""), ErrInvalidKey)
	_, _, err := c.GetProgress(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPutVariantKeepsProgress(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 37.5))
	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 9, "Tolkien"))

	pct, ok, err := c.GetProgress(ctx, hobbitASIN())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 37.5, pct)
}

func TestPutProgressKeepsVariant(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 9, "Tolkien"))
	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 80))
	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 0))

	id, ok, err := c.GetVariant(ctx, hobbitASIN())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, id)

	pct, _, _ := c.GetProgress(ctx, hobbitASIN())
	assert.Equal(t, 0.0, pct)
}

func TestHasChanged(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	assert.True(t, c.HasChanged(ctx, hobbitASIN(), 50), "first query is always a change")

	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 50))
	assert.False(t, c.HasChanged(ctx, hobbitASIN(), 50))
	assert.False(t, c.HasChanged(ctx, hobbitASIN(), 50.05))
	assert.True(t, c.HasChanged(ctx, hobbitASIN(), 50.2))
	assert.True(t, c.HasChanged(ctx, hobbitASIN(), 49.8))
}

func TestHasChangedCustomTolerance(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, WithTolerance(1))
	assert.Equal(t, 1.0, c.Tolerance())

	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 50))
	assert.False(t, c.HasChanged(ctx, hobbitASIN(), 50.9))
	assert.True(t, c.HasChanged(ctx, hobbitASIN(), 51.5))
}

func TestHasChangedFailsOpen(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	c, err := NewBookCache(db, nil)
	require.NoError(t, err)

	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 50))
	require.NoError(t, database.Close(db))

	assert.True(t, c.HasChanged(ctx, hobbitASIN(), 50))
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	c := newTestCache(t, WithClock(func() time.Time { return now }))

	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 10))
	now = now.Add(time.Hour)

	missing := Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "0306406152", Title: "Other"}
	require.NoError(t, c.Touch(ctx, hobbitASIN(), missing))

	recs, err := c.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1, "touch never creates rows")
	assert.True(t, recs[0].UpdatedAt.Equal(fixedNow.Add(time.Hour)))
	assert.Equal(t, 10.0, recs[0].ProgressPercent)
}

func TestStatsAndClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 1, ""))
	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 20))
	require.NoError(t, c.PutProgress(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "0306406152", Title: "B"}, 0))
	require.NoError(t, c.PutVariant(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "9780747532699", Title: "C"}, 2, ""))

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalBooks)
	assert.Equal(t, int64(2), s.BooksWithVariants)
	assert.Equal(t, int64(1), s.BooksWithProgress)
	assert.Greater(t, s.StorageBytes, int64(0))

	require.NoError(t, c.Clear(ctx))
	s, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.TotalBooks)
}

func TestBooksByAuthor(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 1, "J.R.R. Tolkien"))
	require.NoError(t, c.PutVariant(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "0306406152", Title: "Silmarillion"}, 2, "J.R.R. Tolkien"))
	require.NoError(t, c.PutVariant(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "9780747532699", Title: "Harry Potter"}, 3, "J.K. Rowling"))
	require.NoError(t, c.PutVariant(ctx, Key{UserID: "u2", Kind: identifier.KindISBN, Identifier: "9780747532699", Title: "Lord of the Rings"}, 4, "J.R.R. Tolkien"))

	recs, err := c.BooksByAuthor(ctx, "u1", "j.r.r. tolkien")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "silmarillion", recs[0].Title)
	assert.Equal(t, "the hobbit", recs[1].Title)
}

func TestConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	isbns := []string{"0306406152", "9780747532699", "080442957X"}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: isbns[i%len(isbns)], Title: fmt.Sprintf("Book %d", i%len(isbns))}
			assert.NoError(t, c.PutProgress(ctx, key, float64(i)))
			assert.NoError(t, c.PutVariant(ctx, key, i, ""))
			c.HasChanged(ctx, key, float64(i))
		}(i)
	}
	wg.Wait()

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalBooks)
}

func seedExport(t *testing.T, c *BookCache) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.PutVariant(ctx, hobbitASIN(), 42, "J.R.R. Tolkien"))
	require.NoError(t, c.PutProgress(ctx, hobbitASIN(), 61.5))
	require.NoError(t, c.PutProgress(ctx, Key{UserID: "u1", Kind: identifier.KindISBN, Identifier: "9780261102217", Title: "The Hobbit"}, 61.5))
	require.NoError(t, c.PutVariant(ctx, Key{UserID: "u2", Kind: identifier.KindISBN, Identifier: "0-306-40615-2", Title: "  A   Book "}, 7, ""))
}

func TestExportJSON(t *testing.T) {
	c := newTestCache(t)
	seedExport(t, c)

	var buf bytes.Buffer
	require.NoError(t, c.Export(context.Background(), &buf, FormatJSON))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export_json", buf.Bytes())
}

func TestExportJSONEmpty(t *testing.T) {
	c := newTestCache(t)

	var buf bytes.Buffer
	require.NoError(t, c.Export(context.Background(), &buf, FormatJSON))
	assert.JSONEq(t, `{"books": []}`, buf.String())
}

func TestExportYAML(t *testing.T) {
	c := newTestCache(t)
	seedExport(t, c)

	var buf bytes.Buffer
	require.NoError(t, c.Export(context.Background(), &buf, FormatYAML))

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Books, 3)
	assert.Equal(t, "B00ABC1234", doc.Books[0].Identifier)
	require.NotNil(t, doc.Books[0].VariantID)
	assert.Equal(t, 42, *doc.Books[0].VariantID)
	assert.Nil(t, doc.Books[1].VariantID)
	assert.Equal(t, "a book", doc.Books[2].Title)
	assert.True(t, doc.Books[2].UpdatedAt.Equal(fixedNow))
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseExportFormat("csv")
	assert.Error(t, err)
}
