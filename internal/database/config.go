package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Type represents the supported database backends
type Type string

const (
	TypeSQLite     Type = "sqlite"
	TypePostgreSQL Type = "postgresql"
	TypeMySQL      Type = "mysql"
	TypeMariaDB    Type = "mariadb"
)

// ParseType maps user input to a Type. Unknown values fall back to SQLite.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return TypePostgreSQL
	case "mysql":
		return TypeMySQL
	case "mariadb":
		return TypeMariaDB
	default:
		return TypeSQLite
	}
}

// Config holds the connection settings for the cache database
type Config struct {
	Type     Type   `yaml:"type" json:"type"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"` // SQLite only
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"name,omitempty" json:"name,omitempty"`
	Username string `yaml:"user,omitempty" json:"user,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	SSLMode  string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	MaxOpenConns    int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns    int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"` // minutes
}

// DefaultPath returns the SQLite file used when no path is configured.
func DefaultPath() string {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	return filepath.Join(dataDir, "progress-cache.db")
}

// DefaultConfig returns a SQLite configuration rooted at DefaultPath.
func DefaultConfig() Config {
	return Config{
		Type: TypeSQLite,
		Path: DefaultPath(),
	}
}

// ApplyDefaults fills unset ports and pool sizes for the configured type.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeSQLite
	}
	if c.Type == TypeSQLite {
		if c.Path == "" {
			c.Path = DefaultPath()
		}
		return
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Database == "" {
		c.Database = "abs_hardcover_progress"
	}
	if c.Port == 0 {
		switch c.Type {
		case TypePostgreSQL:
			c.Port = 5432
		case TypeMySQL, TypeMariaDB:
			c.Port = 3306
		}
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 60
	}
}

// Validate checks that the fields required by the configured type are present
func (c Config) Validate() error {
	switch c.Type {
	case TypeSQLite:
		if c.Path == "" {
			return fmt.Errorf("SQLite database path is required")
		}
	case TypePostgreSQL, TypeMySQL, TypeMariaDB:
		if c.Host == "" {
			return fmt.Errorf("database host is required for %s", c.Type)
		}
		if c.Database == "" {
			return fmt.Errorf("database name is required for %s", c.Type)
		}
		if c.Port <= 0 {
			return fmt.Errorf("valid database port is required for %s", c.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// DSN returns the data source name understood by the driver for c.Type
func (c Config) DSN() string {
	switch c.Type {
	case TypeSQLite:
		// modernc.org/sqlite applies _pragma parameters on every new connection
		return c.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	case TypePostgreSQL:
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
			c.Host, c.Port, c.Database, c.SSLMode)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		return dsn
	case TypeMySQL, TypeMariaDB:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.Username, c.Password, c.Host, c.Port, c.Database)
	default:
		return ""
	}
}
