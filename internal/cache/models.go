package cache

import (
	"errors"
	"strings"
	"time"

	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
)

// ErrInvalidKey is returned for keys whose identifier does not normalize.
var ErrInvalidKey = errors.New("invalid cache key")

// BookRecord is one cached row per (user, identifier kind, identifier, title).
type BookRecord struct {
	ID              uint      `gorm:"primaryKey" json:"-" yaml:"-"`
	UserID          string    `gorm:"size:64;not null;uniqueIndex:idx_books_key,priority:1;index:idx_books_author,priority:1" json:"user_id" yaml:"user_id"`
	IdentifierKind  string    `gorm:"size:8;not null;uniqueIndex:idx_books_key,priority:2" json:"identifier_kind" yaml:"identifier_kind"`
	Identifier      string    `gorm:"size:32;not null;uniqueIndex:idx_books_key,priority:3" json:"identifier" yaml:"identifier"`
	Title           string    `gorm:"size:255;not null;uniqueIndex:idx_books_key,priority:4" json:"title" yaml:"title"`
	VariantID       *int      `json:"variant_id" yaml:"variant_id"`
	Author          *string   `gorm:"size:255;index:idx_books_author,priority:2" json:"author" yaml:"author"`
	ProgressPercent float64   `gorm:"not null;default:0" json:"progress_percent" yaml:"progress_percent"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// TableName pins the table name independent of gorm's pluralisation.
func (BookRecord) TableName() string {
	return "books"
}

// Key addresses one cache row. Fields are normalized before use, so raw
// identifiers and titles may be passed as-is.
type Key struct {
	UserID     string
	Kind       identifier.Kind
	Identifier string
	Title      string
}

func (k Key) normalize() (Key, error) {
	value, ok := identifier.Normalize(k.Kind, k.Identifier)
	if !ok {
		return Key{}, ErrInvalidKey
	}
	return Key{
		UserID:     strings.TrimSpace(k.UserID),
		Kind:       k.Kind,
		Identifier: value,
		Title:      identifier.NormalizeTitle(k.Title),
	}, nil
}

// Stats summarises the cache contents.
type Stats struct {
	TotalBooks        int64 `json:"total_books" yaml:"total_books"`
	BooksWithVariants int64 `json:"books_with_variants" yaml:"books_with_variants"`
	BooksWithProgress int64 `json:"books_with_progress" yaml:"books_with_progress"`
	StorageBytes      int64 `json:"storage_bytes" yaml:"storage_bytes"`
}
