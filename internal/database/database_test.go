package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"postgres", TypePostgreSQL},
		{"PostgreSQL", TypePostgreSQL},
		{"mysql", TypeMySQL},
		{"mariadb", TypeMariaDB},
		{"sqlite", TypeSQLite},
		{"", TypeSQLite},
		{"oracle", TypeSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseType(tt.in))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite ok", Config{Type: TypeSQLite, Path: "x.db"}, false},
		{"sqlite missing path", Config{Type: TypeSQLite}, true},
		{"postgres ok", Config{Type: TypePostgreSQL, Host: "db", Database: "d", Port: 5432}, false},
		{"postgres missing host", Config{Type: TypePostgreSQL, Database: "d", Port: 5432}, true},
		{"mysql missing port", Config{Type: TypeMySQL, Host: "db", Database: "d"}, true},
		{"unknown", Config{Type: "oracle"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Type: TypePostgreSQL}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "prefer", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)

	my := Config{Type: TypeMariaDB}
	my.ApplyDefaults()
	assert.Equal(t, 3306, my.Port)

	var empty Config
	empty.ApplyDefaults()
	assert.Equal(t, TypeSQLite, empty.Type)
	assert.NotEmpty(t, empty.Path)
}

func TestDSN(t *testing.T) {
	pg := Config{Type: TypePostgreSQL, Host: "db", Port: 5432, Database: "abs", SSLMode: "disable", Username: "u", Password: "p"}
	assert.Equal(t, "host=db port=5432 dbname=abs sslmode=disable user=u password=p", pg.DSN())

	my := Config{Type: TypeMySQL, Host: "db", Port: 3306, Database: "abs", Username: "u", Password: "p"}
	assert.Equal(t, "u:p@tcp(db:3306)/abs?charset=utf8mb4&parseTime=True&loc=UTC", my.DSN())

	lite := Config{Type: TypeSQLite, Path: "/tmp/c.db"}
	assert.Contains(t, lite.DSN(), "/tmp/c.db?")
	assert.Contains(t, lite.DSN(), "busy_timeout")
}

func TestOpenSQLite(t *testing.T) {
	cfg := Config{Type: TypeSQLite, Path: filepath.Join(t.TempDir(), "nested", "cache.db")}

	db, err := Open(cfg, nil)
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, Health(db))
	require.NoError(t, db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)").Error)
	assert.Greater(t, FileSize(cfg), int64(0))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(Config{Type: TypeSQLite}, nil)
	assert.Error(t, err)
}

func TestFileSizeNonSQLite(t *testing.T) {
	assert.Equal(t, int64(0), FileSize(Config{Type: TypePostgreSQL, Path: "/etc/passwd"}))
}
