package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"

	"github.com/stretchr/testify/require"
)

// TestDatabase represents a test database instance.
type TestDatabase struct {
	DB   *sql.DB
	Path string
}

// SetupTestDatabase creates a SQLite file in a temp directory, runs migrations, and returns the connection.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(ctx, &db.Config{Path: path, BusyTimeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, db.Migrate(conn))

	return &TestDatabase{
		DB:   conn,
		Path: path,
	}
}

// Cleanup closes the connection. The temp directory is removed by the testing package.
func (td *TestDatabase) Cleanup(t *testing.T) {
	t.Helper()

	if td.DB != nil {
		require.NoError(t, td.DB.Close())
	}
}

// TruncateTables empties all tables and restarts id sequences for test isolation.
func (td *TestDatabase) TruncateTables(t *testing.T) {
	t.Helper()

	_, err := td.DB.Exec(`
		DELETE FROM videos;
		DELETE FROM profiles;
		DELETE FROM sqlite_sequence WHERE name IN ('videos', 'profiles');
	`)
	require.NoError(t, err)
}
