package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverMySQL    = "mysql"
)

var driverAliases = map[string]string{
	"":           driverSQLite,
	"sqlite":     driverSQLite,
	"sqlite3":    driverSQLite,
	"postgres":   driverPostgres,
	"postgresql": driverPostgres,
	"pg":         driverPostgres,
	"mysql":      driverMySQL,
	"mariadb":    driverMySQL,
}

func normaliseDriver(name string) (string, bool) {
	driver, ok := driverAliases[strings.ToLower(strings.TrimSpace(name))]
	return driver, ok
}

// dialectorFor returns the gorm dialector and log level for a normalised driver.
func dialectorFor(driver string, cfg Config) (gorm.Dialector, logger.LogLevel, error) {
	switch driver {
	case driverSQLite:
		dsn, err := sqliteDSN(cfg)
		if err != nil {
			return nil, 0, err
		}
		return sqlite.Open(dsn), logger.Silent, nil
	case driverPostgres:
		dsn, err := buildPostgresDSN(cfg)
		if err != nil {
			return nil, 0, err
		}
		return postgres.Open(dsn), logger.Warn, nil
	case driverMySQL:
		dsn, err := buildMySQLDSN(cfg)
		if err != nil {
			return nil, 0, err
		}
		return mysql.Open(dsn), logger.Warn, nil
	}
	return nil, 0, fmt.Errorf("unsupported database driver %q", driver)
}

// sqliteDSN maps an empty path or ":memory:" to a private in-memory database.
func sqliteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return "file::memory:?_foreign_keys=1", nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", filepath.ToSlash(path)), nil
}

// prepareSQLite pins the pool to one connection; the notification log and
// the cache table are written from many goroutines and SQLite serialises writers.
func prepareSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return nil
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	parts := []string{
		"host=" + withDefault(cfg.Host, "localhost"),
		fmt.Sprintf("port=%d", portOr(cfg.Port, 5432)),
		"user=" + cfg.User,
		"dbname=" + cfg.Name,
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+cfg.Password)
	}
	parts = append(parts, renderOptions(cfg.Options, map[string]string{"sslmode": "disable"})...)
	return strings.Join(parts, " "), nil
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	credentials := cfg.User
	if cfg.Password != "" {
		credentials += ":" + cfg.Password
	}
	params := renderOptions(cfg.Options, map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "True",
		"loc":       "Local",
	})
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		credentials,
		withDefault(cfg.Host, "127.0.0.1"),
		portOr(cfg.Port, 3306),
		cfg.Name,
		strings.Join(params, "&"),
	), nil
}

// renderOptions overlays options on defaults and returns sorted key=value pairs.
func renderOptions(options, defaults map[string]string) []string {
	merged := make(map[string]string, len(options)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func portOr(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}
