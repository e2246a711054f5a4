package sync

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/drallgood/abs-hardcover-progress/internal/api/audiobookshelf"
	"github.com/drallgood/abs-hardcover-progress/internal/api/hardcover"
	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/edition"
	"github.com/drallgood/abs-hardcover-progress/internal/index"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
	"github.com/drallgood/abs-hardcover-progress/internal/status"
)

// DefaultWorkers is the default size of the per-book worker pool
const DefaultWorkers = 3

// Config is the explicit configuration of one Service.
type Config struct {
	// UserID keys the cache. Empty means the Hardcover user id.
	UserID string
	// Workers bounds the number of books reconciled at once
	Workers int
	// Parallel enables the worker pool; when false books run one at a time
	Parallel bool
	// DryRun performs lookups only: no remote writes and no cache writes
	DryRun     bool
	Thresholds status.Thresholds
}

// DefaultConfig returns a parallel, non dry-run configuration.
func DefaultConfig() Config {
	return Config{
		Workers:    DefaultWorkers,
		Parallel:   true,
		Thresholds: status.DefaultThresholds(),
	}
}

// Store is the persistent cache as used by the orchestrator.
type Store interface {
	GetVariant(ctx context.Context, key cache.Key) (int, bool, error)
	PutVariant(ctx context.Context, key cache.Key, variantID int, author string) error
	PutProgress(ctx context.Context, key cache.Key, percent float64) error
	HasChanged(ctx context.Context, key cache.Key, percent float64) bool
	Touch(ctx context.Context, keys ...cache.Key) error
}

var _ Store = (*cache.BookCache)(nil)

// Recorder persists run summaries.
type Recorder interface {
	Record(ctx context.Context, summary *Summary) error
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder stores every finished run summary in r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithClock overrides the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service reconciles Audiobookshelf progress into Hardcover.
type Service struct {
	source   audiobookshelf.AudiobookshelfClientInterface
	target   hardcover.HardcoverClientInterface
	store    Store
	cfg      Config
	selector *edition.Selector
	recorder Recorder
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new sync service
func NewService(
	source audiobookshelf.AudiobookshelfClientInterface,
	target hardcover.HardcoverClientInterface,
	store Store,
	cfg Config,
	log *logger.Logger,
	opts ...Option,
) (*Service, error) {
	if source == nil || target == nil || store == nil {
		return nil, fmt.Errorf("sync service requires a source, a target and a store")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.Get()
	}
	log = log.With(map[string]interface{}{"component": "sync_service"})

	s := &Service{
		source:   source,
		target:   target,
		store:    store,
		cfg:      cfg,
		selector: edition.NewSelector(log),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// run is the read-only state shared by all tasks of one Run.
type run struct {
	userID  string
	index   *index.Index
	library map[int]models.UserBook

	mu    sync.Mutex
	added map[int]func() (int, error)
}

// snapshot fetches both sides concurrently. Either failing fails the run.
func (s *Service) snapshot(ctx context.Context) ([]models.SourceBook, *run, error) {
	var (
		books   []models.SourceBook
		library []models.UserBook
		userID  = s.cfg.UserID
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = s.source.ListProgress(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch source progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		library, err = s.target.ListLibrary(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch Hardcover library: %w", err)
		}
		return nil
	})
	if userID == "" {
		g.Go(func() error {
			id, err := s.target.CurrentUserID(gctx)
			if err != nil {
				return fmt.Errorf("failed to resolve Hardcover user: %w", err)
			}
			userID = strconv.Itoa(id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	r := &run{
		userID:  userID,
		index:   index.Build(library),
		library: make(map[int]models.UserBook, len(library)),
		added:   make(map[int]func() (int, error)),
	}
	for _, ub := range library {
		if _, ok := r.library[ub.BookID]; !ok {
			r.library[ub.BookID] = ub
		}
	}
	return books, r, nil
}

// Run performs one reconciliation pass. Only a failure to fetch either
// snapshot is returned as an error; per-book failures are reported in the
// summary. Books already in progress when ctx is cancelled run to completion,
// books not yet started are skipped.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		DryRun:    s.cfg.DryRun,
		Errors:    []string{},
	}
	log := s.log.With(map[string]interface{}{"run_id": summary.RunID})
	log.Info("Starting sync", map[string]interface{}{
		"dry_run":  s.cfg.DryRun,
		"workers":  s.workers(),
		"parallel": s.cfg.Parallel,
	})

	books, r, err := s.snapshot(ctx)
	if err != nil {
		log.Error("Sync aborted", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	summary.UserID = r.userID
	log.Info("Fetched snapshots", map[string]interface{}{
		"source_books":        len(books),
		"indexed_identifiers": r.index.Len(),
		"library_books":       len(r.library),
	})

	outcomes := make([]Outcome, len(books))
	taskCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(s.workers())
	for i, book := range books {
		if ctx.Err() != nil {
			outcomes[i] = skipped(book.Title, "sync cancelled")
			continue
		}
		i, book := i, book
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = skipped(book.Title, "sync cancelled")
				return nil
			}
			outcomes[i] = s.reconcile(taskCtx, r, book)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		summary.add(o)
	}
	summary.FinishedAt = s.now()

	log.Info("Sync finished", map[string]interface{}{
		"total":      summary.Total,
		"synced":     summary.Synced,
		"completed":  summary.Completed,
		"auto_added": summary.AutoAdded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"duration":   summary.Duration().String(),
	})

	if s.recorder != nil {
		if err := s.recorder.Record(taskCtx, summary); err != nil {
			log.Warn("Failed to record sync run", map[string]interface{}{"error": err.Error()})
		}
	}
	return summary, nil
}

func (s *Service) workers() int {
	if !s.cfg.Parallel {
		return 1
	}
	return s.cfg.Workers
}
