package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/drallgood/abs-hardcover-progress/internal/logger"
)

// DefaultTolerance is the percentage difference HasChanged ignores.
const DefaultTolerance = 0.1

var keyColumns = []clause.Column{
	{Name: "user_id"},
	{Name: "identifier_kind"},
	{Name: "identifier"},
	{Name: "title"},
}

// Option configures a BookCache.
type Option func(*BookCache)

// WithTolerance overrides DefaultTolerance. Negative values are ignored.
func WithTolerance(tolerance float64) Option {
	return func(c *BookCache) {
		if tolerance >= 0 {
			c.tolerance = tolerance
		}
	}
}

// WithStorageSize sets the function Stats uses to report bytes on disk.
func WithStorageSize(fn func() int64) Option {
	return func(c *BookCache) {
		c.storageSize = fn
	}
}

// WithClock replaces time.Now for the updated_at column.
func WithClock(now func() time.Time) Option {
	return func(c *BookCache) {
		c.now = now
	}
}

// BookCache is the durable edition and progress cache. It holds no state
// between calls beyond the connection pool, so it is safe for concurrent use.
type BookCache struct {
	db          *gorm.DB
	log         *logger.Logger
	tolerance   float64
	storageSize func() int64
	now         func() time.Time
}

// NewBookCache migrates the books table and returns a cache backed by db.
func NewBookCache(db *gorm.DB, log *logger.Logger, opts ...Option) (*BookCache, error) {
	if log == nil {
		log = logger.Get()
	}
	c := &BookCache{
		db:        db,
		log:       log.With(map[string]interface{}{"component": "book_cache"}),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := db.AutoMigrate(&BookRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate book cache: %w", err)
	}
	return c, nil
}

// Tolerance returns the threshold used by HasChanged.
func (c *BookCache) Tolerance() float64 {
	return c.tolerance
}

func (c *BookCache) session(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *BookCache) find(ctx context.Context, key Key) (*BookRecord, error) {
	k, err := key.normalize()
	if err != nil {
		return nil, err
	}
	var rec BookRecord
	err = c.session(ctx).
		Where("user_id = ? AND identifier_kind = ? AND identifier = ? AND title = ?",
			k.UserID, string(k.Kind), k.Identifier, k.Title).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache row: %w", err)
	}
	return &rec, nil
}

// GetVariant returns the edition id last selected for key.
func (c *BookCache) GetVariant(ctx context.Context, key Key) (int, bool, error) {
	rec, err := c.find(ctx, key)
	if err != nil || rec == nil || rec.VariantID == nil {
		return 0, false, err
	}
	return *rec.VariantID, true, nil
}

// PutVariant stores the selected edition for key. Existing progress is kept,
// and an empty author leaves any stored author untouched.
func (c *BookCache) PutVariant(ctx context.Context, key Key, variantID int, author string) error {
	k, err := key.normalize()
	if err != nil {
		return err
	}
	rec := BookRecord{
		UserID:         k.UserID,
		IdentifierKind: string(k.Kind),
		Identifier:     k.Identifier,
		Title:          k.Title,
		VariantID:      &variantID,
		UpdatedAt:      c.now(),
	}
	update := []string{"variant_id", "updated_at"}
	if author != "" {
		rec.Author = &author
		update = append(update, "author")
	}

	err = c.session(ctx).Clauses(clause.OnConflict{
		Columns:   keyColumns,
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to store edition mapping: %w", err)
	}
	return nil
}

// GetProgress returns the last synced percentage for key.
func (c *BookCache) GetProgress(ctx context.Context, key Key) (float64, bool, error) {
	rec, err := c.find(ctx, key)
	if err != nil || rec == nil {
		return 0, false, err
	}
	return rec.ProgressPercent, true, nil
}

// PutProgress stores the synced percentage for key. Any stored edition is kept.
func (c *BookCache) PutProgress(ctx context.Context, key Key, percent float64) error {
	k, err := key.normalize()
	if err != nil {
		return err
	}
	rec := BookRecord{
		UserID:          k.UserID,
		IdentifierKind:  string(k.Kind),
		Identifier:      k.Identifier,
		Title:           k.Title,
		ProgressPercent: percent,
		UpdatedAt:       c.now(),
	}
	err = c.session(ctx).Clauses(clause.OnConflict{
		Columns:   keyColumns,
		DoUpdates: clause.AssignmentColumns([]string{"progress_percent", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// HasChanged reports whether percent differs from the cached value by more
// than the tolerance. A missing row or a storage failure counts as changed.
func (c *BookCache) HasChanged(ctx context.Context, key Key, percent float64) bool {
	cached, ok, err := c.GetProgress(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed, treating progress as changed", map[string]interface{}{
			"identifier": key.Identifier,
			"kind":       key.Kind,
			"error":      err.Error(),
		})
		return true
	}
	if !ok {
		return true
	}
	return math.Abs(percent-cached) > c.tolerance
}

// Touch refreshes updated_at on the rows that already exist for keys.
func (c *BookCache) Touch(ctx context.Context, keys ...Key) error {
	now := c.now()
	for _, key := range keys {
		k, err := key.normalize()
		if err != nil {
			return err
		}
		err = c.session(ctx).Model(&BookRecord{}).
			Where("user_id = ? AND identifier_kind = ? AND identifier = ? AND title = ?",
				k.UserID, string(k.Kind), k.Identifier, k.Title).
			Update("updated_at", now).Error
		if err != nil {
			return fmt.Errorf("failed to refresh cache row: %w", err)
		}
	}
	return nil
}

// Clear deletes every cached row.
func (c *BookCache) Clear(ctx context.Context) error {
	res := c.session(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&BookRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to clear cache: %w", res.Error)
	}
	c.log.Info("Cache cleared", map[string]interface{}{"rows": res.RowsAffected})
	return nil
}

// Stats counts rows, rows with an edition, rows with progress and storage size.
func (c *BookCache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	db := c.session(ctx).Model(&BookRecord{})
	if err := db.Count(&s.TotalBooks).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count cache rows: %w", err)
	}
	if err := c.session(ctx).Model(&BookRecord{}).Where("variant_id IS NOT NULL").Count(&s.BooksWithVariants).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count edition mappings: %w", err)
	}
	if err := c.session(ctx).Model(&BookRecord{}).Where("progress_percent > 0").Count(&s.BooksWithProgress).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count progress rows: %w", err)
	}
	if c.storageSize != nil {
		s.StorageBytes = c.storageSize()
	}
	return s, nil
}

// Records returns every row ordered by key.
func (c *BookCache) Records(ctx context.Context) ([]BookRecord, error) {
	var recs []BookRecord
	err := c.session(ctx).
		Order("user_id, identifier_kind, identifier, title").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cache rows: %w", err)
	}
	return recs, nil
}

// BooksByAuthor returns the rows for userID whose author matches, ignoring case.
func (c *BookCache) BooksByAuthor(ctx context.Context, userID, author string) ([]BookRecord, error) {
	var recs []BookRecord
	err := c.session(ctx).
		Where("user_id = ? AND LOWER(author) = LOWER(?)", userID, author).
		Order("title, identifier_kind, identifier").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query books by author: %w", err)
	}
	return recs, nil
}
