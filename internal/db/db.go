// Package db opens the embedded SQLite database and owns its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// MemoryPath selects an in-memory database instead of a file.
const MemoryPath = ":memory:"

// Config holds the database configuration parameters.
type Config struct {
	// Path is the database file, or MemoryPath.
	Path        string
	BusyTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:        "scheduler.db",
		BusyTimeout: 5 * time.Second,
	}
}

// IsMemory reports whether the config selects an in-memory database.
func (c *Config) IsMemory() bool {
	return c.Path == MemoryPath
}

// DSN renders the go-sqlite3 connection string. Foreign keys are switched on
// for every connection so cascades and FK checks apply.
func (c *Config) DSN() string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", fmt.Sprintf("%d", c.BusyTimeout.Milliseconds()))

	if c.IsMemory() {
		params.Set("mode", "memory")
		return "file::memory:?" + params.Encode()
	}
	params.Set("_journal_mode", "WAL")
	return "file:" + c.Path + "?" + params.Encode()
}

// Open opens the database, creating the parent directory of a file database.
// A single connection is kept: SQLite serializes writers, and an in-memory
// database only lives as long as its one connection.
func Open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	if !cfg.IsMemory() {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return conn, nil
}

// Close closes the database gracefully.
func Close(conn *sql.DB) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}
