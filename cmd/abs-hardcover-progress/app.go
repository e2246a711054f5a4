package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/drallgood/abs-hardcover-progress/internal/api/audiobookshelf"
	"github.com/drallgood/abs-hardcover-progress/internal/api/hardcover"
	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/config"
	"github.com/drallgood/abs-hardcover-progress/internal/database"
	"github.com/drallgood/abs-hardcover-progress/internal/history"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/sync"
)

// app bundles the components every command needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *gorm.DB
	cache   *cache.BookCache
	history *history.Recorder
}

// setup loads configuration, applies command line overrides and opens the
// cache database.
func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(c, cfg)

	logCfg := cfg.LoggerConfig()
	logCfg.Output = os.Stderr
	logger.ForceSetup(logCfg)
	log := logger.Get()

	log.Debug("Configuration loaded", map[string]interface{}{
		"config": cfg.String(),
	})

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	dbCfg := cfg.Database
	bookCache, err := cache.NewBookCache(db, log,
		cache.WithTolerance(cfg.Sync.ProgressTolerance),
		cache.WithStorageSize(func() int64 { return database.FileSize(dbCfg) }),
	)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	recorder, err := history.NewRecorder(db, log)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		cache:   bookCache,
		history: recorder,
	}, nil
}

// applyFlags gives explicitly set global flags precedence over file and environment.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("dry-run") {
		cfg.Sync.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("workers") && c.Int("workers") > 0 {
		cfg.Sync.Workers = c.Int("workers")
	}
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.log.Warn("Failed to close database", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// service wires both remote clients into the orchestrator.
func (a *app) service() (*sync.Service, error) {
	source := audiobookshelf.NewClient(a.cfg.AudiobookshelfConfig(), a.log)
	target := hardcover.NewClient(a.cfg.HardcoverConfig(), a.cfg.Hardcover.Token, a.log)

	return sync.NewService(source, target, a.cache, a.cfg.SyncConfig(), a.log,
		sync.WithRecorder(a.history),
	)
}

// health reports whether the cache database is reachable.
func (a *app) health() error {
	return database.Health(a.db)
}
