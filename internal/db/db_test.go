package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		contains []string
		prefix   string
	}{
		{
			name:     "file database",
			cfg:      Config{Path: "/tmp/app/scheduler.db", BusyTimeout: 2 * time.Second},
			prefix:   "file:/tmp/app/scheduler.db?",
			contains: []string{"_foreign_keys=on", "_busy_timeout=2000", "_journal_mode=WAL"},
		},
		{
			name:     "memory database",
			cfg:      Config{Path: MemoryPath, BusyTimeout: time.Second},
			prefix:   "file::memory:?",
			contains: []string{"_foreign_keys=on", "mode=memory"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.DSN()
			assert.Contains(t, dsn, tt.prefix)
			for _, want := range tt.contains {
				assert.Contains(t, dsn, want)
			}
		})
	}
}

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "scheduler.db")

	conn, err := Open(ctx, &Config{Path: path, BusyTimeout: time.Second})
	require.NoError(t, err)
	defer Close(conn)

	require.NoError(t, Migrate(conn))
	// Second run is a no-op.
	require.NoError(t, Migrate(conn))

	var fk int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	mg, err := NewMigrator(conn)
	require.NoError(t, err)
	defer mg.Close()

	version, dirty, ok, err := mg.Version()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// The connection must survive the migrator.
	require.NoError(t, conn.PingContext(ctx))
}

func TestMigrator_DownAndUp(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, &Config{Path: MemoryPath, BusyTimeout: time.Second})
	require.NoError(t, err)
	defer Close(conn)

	mg, err := NewMigrator(conn)
	require.NoError(t, err)
	defer mg.Close()

	require.NoError(t, mg.Up())
	require.NoError(t, mg.Steps(-1))

	version, _, ok, err := mg.Version()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint(1), version)

	require.NoError(t, mg.Down())
	_, _, ok, err = mg.Version()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "nil stays nil",
			err:  nil,
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "no rows is not found",
			err:  sql.ErrNoRows,
			check: func(t *testing.T, err error) {
				assert.True(t, IsNotFound(err))
				assert.Contains(t, err.Error(), "get thing")
			},
		},
		{
			name: "foreign key",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey},
			check: func(t *testing.T, err error) {
				assert.True(t, IsForeignKeyViolation(err))
				assert.True(t, IsConstraintViolation(err))
				assert.False(t, IsDuplicateKey(err))
			},
		},
		{
			name: "unique",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			check: func(t *testing.T, err error) {
				assert.True(t, IsDuplicateKey(err))
				assert.True(t, IsConstraintViolation(err))
			},
		},
		{
			name: "check",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrCheckViolation)
				assert.False(t, IsForeignKeyViolation(err))
			},
		},
		{
			name: "other errors keep their cause",
			err:  fmt.Errorf("boom: %w", errors.New("disk")),
			check: func(t *testing.T, err error) {
				assert.False(t, IsConstraintViolation(err))
				assert.Contains(t, err.Error(), "disk")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, WrapError(tt.err, "get thing"))
		})
	}
}

func TestForeignKeyEnforced(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, &Config{Path: MemoryPath, BusyTimeout: time.Second})
	require.NoError(t, err)
	defer Close(conn)
	require.NoError(t, Migrate(conn))

	_, err = conn.ExecContext(ctx,
		`INSERT INTO videos (profile_id, title, schedule_date) VALUES (?, ?, ?)`,
		999, "orphan", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(WrapError(err, "create video")))
}
