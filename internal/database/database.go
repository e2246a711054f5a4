package database

import (
	"fmt"
	"os"

	"gorm.io/gorm"
)

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Health pings the database.
func Health(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// FileSize reports the on-disk size of a SQLite database including its WAL.
// Other backends report 0.
func FileSize(cfg Config) int64 {
	if cfg.Type != TypeSQLite || cfg.Path == "" {
		return 0
	}
	var total int64
	for _, p := range []string{cfg.Path, cfg.Path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}
