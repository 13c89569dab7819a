package repo_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barbartender/bartender/internal/config"
	"github.com/barbartender/bartender/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
