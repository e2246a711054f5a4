// Package history persists a summary row for every sync run.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/sync"
)

// DefaultLimit is the number of runs returned when no limit is given
const DefaultLimit = 20

// SyncRun is one recorded sync run
type SyncRun struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	UserID     string    `gorm:"size:64;index" json:"user_id" yaml:"user_id"`
	StartedAt  time.Time `gorm:"index" json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	Total      int       `json:"total" yaml:"total"`
	Synced     int       `json:"synced" yaml:"synced"`
	Completed  int       `json:"completed" yaml:"completed"`
	AutoAdded  int       `json:"auto_added" yaml:"auto_added"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
	Errors     []string  `gorm:"serializer:json;type:text" json:"errors" yaml:"errors"`
}

// TableName pins the table name
func (SyncRun) TableName() string {
	return "sync_runs"
}

// BeforeCreate hook for SyncRun
func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return nil
}

// Duration is the wall time of the run
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder stores run summaries.
type Recorder struct {
	db  *gorm.DB
	log *logger.Logger
}

var _ sync.Recorder = (*Recorder)(nil)

// NewRecorder migrates the sync_runs table and returns a Recorder.
func NewRecorder(db *gorm.DB, log *logger.Logger) (*Recorder, error) {
	if log == nil {
		log = logger.Get()
	}
	if err := db.AutoMigrate(&SyncRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sync history: %w", err)
	}
	return &Recorder{db: db, log: log.With(map[string]interface{}{"component": "history"})}, nil
}

// Record stores the counts of s.
func (r *Recorder) Record(ctx context.Context, s *sync.Summary) error {
	run := SyncRun{
		ID:         s.RunID,
		UserID:     s.UserID,
		StartedAt:  s.StartedAt.UTC(),
		FinishedAt: s.FinishedAt.UTC(),
		DryRun:     s.DryRun,
		Total:      s.Total,
		Synced:     s.Synced,
		Completed:  s.Completed,
		AutoAdded:  s.AutoAdded,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Errors:     append([]string{}, s.Errors...),
	}
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	r.log.Debug("Recorded sync run", map[string]interface{}{"run_id": run.ID})
	return nil
}

// Recent returns up to limit runs, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var runs []SyncRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

// Prune deletes runs that started before cutoff and returns how many were removed.
func (r *Recorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("started_at < ?", cutoff.UTC()).Delete(&SyncRun{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune sync runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
