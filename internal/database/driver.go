package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure Go SQLite driver registered as "sqlite" (no CGO required)
	_ "modernc.org/sqlite"

	"github.com/drallgood/abs-hardcover-progress/internal/logger"
)

// Driver opens a gorm connection for one database type
type Driver interface {
	Dialector(cfg Config) gorm.Dialector
	Prepare(cfg Config) error
	Tune(db *gorm.DB, cfg Config) error
}

type sqliteDriver struct{}

func (sqliteDriver) Dialector(cfg Config) gorm.Dialector {
	return sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.DSN(),
	}
}

func (sqliteDriver) Prepare(cfg Config) error {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func (sqliteDriver) Tune(db *gorm.DB, _ Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows a single writer; serialising on one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

type postgresDriver struct{}

func (postgresDriver) Dialector(cfg Config) gorm.Dialector {
	return postgres.Open(cfg.DSN())
}

func (postgresDriver) Prepare(Config) error { return nil }

func (postgresDriver) Tune(db *gorm.DB, cfg Config) error {
	return tunePool(db, cfg)
}

type mysqlDriver struct{}

func (mysqlDriver) Dialector(cfg Config) gorm.Dialector {
	return mysql.Open(cfg.DSN())
}

func (mysqlDriver) Prepare(Config) error { return nil }

func (mysqlDriver) Tune(db *gorm.DB, cfg Config) error {
	return tunePool(db, cfg)
}

func tunePool(db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	return nil
}

// DriverFor returns the driver for the given database type
func DriverFor(t Type) (Driver, error) {
	switch t {
	case TypeSQLite:
		return sqliteDriver{}, nil
	case TypePostgreSQL:
		return postgresDriver{}, nil
	case TypeMySQL, TypeMariaDB:
		return mysqlDriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", t)
	}
}

// Open validates cfg and returns a tuned gorm connection.
func Open(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	driver, err := DriverFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err := driver.Prepare(cfg); err != nil {
		return nil, err
	}

	db, err := gorm.Open(driver.Dialector(cfg), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Type, err)
	}
	if err := driver.Tune(db, cfg); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("Database connection established", map[string]interface{}{
			"type": cfg.Type,
			"host": cfg.Host,
			"path": cfg.Path,
		})
	}
	return db, nil
}
