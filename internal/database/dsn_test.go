package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormaliseDriver(t *testing.T) {
	cases := map[string]string{
		"":           driverSQLite,
		" SQLite3 ":  driverSQLite,
		"PostgreSQL": driverPostgres,
		"pg":         driverPostgres,
		"MariaDB":    driverMySQL,
		"mysql":      driverMySQL,
	}
	for in, want := range cases {
		got, ok := normaliseDriver(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}

	_, ok := normaliseDriver("oracle")
	require.False(t, ok)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "clinic", Name: "clinic"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=clinic dbname=clinic sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User:     "notify",
		Name:     "events",
		Host:     "db.clinic.internal",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"sslmode": "require", "search_path": "public"},
	})
	require.NoError(t, err)
	require.Equal(t,
		"host=db.clinic.internal port=6543 user=notify dbname=events password=pass search_path=public sslmode=require",
		dsn)

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "clinic", Name: "clinic"})
	require.NoError(t, err)
	require.Equal(t, "clinic@tcp(127.0.0.1:3306)/clinic?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{
		User:     "notify",
		Password: "secret",
		Name:     "events",
		Host:     "db.clinic.internal",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify", "loc": "UTC"},
	})
	require.NoError(t, err)
	require.Equal(t,
		"notify:secret@tcp(db.clinic.internal:3307)/events?charset=utf8mb4&loc=UTC&parseTime=True&tls=skip-verify",
		dsn)

	_, err = buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestExplicitDSNWins(t *testing.T) {
	cfg := Config{DSN: "custom", User: "ignored", Name: "ignored"}

	for _, build := range []func(Config) (string, error){buildPostgresDSN, buildMySQLDSN, sqliteDSN} {
		dsn, err := build(cfg)
		require.NoError(t, err)
		require.Equal(t, "custom", dsn)
	}
}

func TestSQLiteDSN(t *testing.T) {
	for _, path := range []string{"", ":memory:", " :MEMORY: "} {
		dsn, err := sqliteDSN(Config{Path: path})
		require.NoError(t, err)
		require.Equal(t, "file::memory:?_foreign_keys=1", dsn)
	}

	path := filepath.Join(t.TempDir(), "data", "clinic.db")
	dsn, err := sqliteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.DirExists(t, filepath.Dir(path))
}
