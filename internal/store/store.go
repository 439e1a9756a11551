// Package store is the on-device copy of the scheduler data. It mirrors the
// remote API's operations on an embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/config"
	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/repository"
	"github.com/ad-tracker/upload-scheduler-go/internal/metrics"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotInitialized is returned by every operation before Initialize succeeds
// or after Close.
var ErrNotInitialized = errors.New("store not initialized")

// StoreInitError reports a failed open or schema setup. A later Initialize retries.
//
//nolint:revive // exported name matches the error it reports
type StoreInitError struct {
	Path string
	Err  error
}

func (e *StoreInitError) Error() string {
	return fmt.Sprintf("initialize store at %s: %v", e.Path, e.Err)
}

func (e *StoreInitError) Unwrap() error {
	return e.Err
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for push-window tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store owns the database connection and exposes the data operations.
type Store struct {
	cfg   *db.Config
	now   func() time.Time
	group singleflight.Group

	mu   sync.RWMutex
	conn *sql.DB
}

// New creates a Store for cfg. Nothing is opened until Initialize.
func New(cfg *db.Config, opts ...Option) *Store {
	s := &Store{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DatabaseConfig picks the database location for the platform: a file under
// the data directory on native installs, memory elsewhere.
func DatabaseConfig(cfg *config.Config) *db.Config {
	if !cfg.App.IsNative() {
		return &db.Config{Path: db.MemoryPath, BusyTimeout: cfg.Store.BusyTimeout}
	}

	path := cfg.Store.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.App.DataDir, path)
	}
	return &db.Config{Path: path, BusyTimeout: cfg.Store.BusyTimeout}
}

// Initialize opens the database and applies the schema. It is idempotent and
// concurrent callers share one attempt.
func (s *Store) Initialize(ctx context.Context) error {
	if s.Initialized() {
		return nil
	}

	_, err, _ := s.group.Do("initialize", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.conn != nil {
			return nil, nil
		}

		start := time.Now()
		conn, err := db.Open(ctx, s.cfg)
		if err != nil {
			metrics.StoreInitializations.WithLabelValues(metrics.ResultError).Inc()
			return nil, &StoreInitError{Path: s.cfg.Path, Err: err}
		}

		if err := db.Migrate(conn); err != nil {
			conn.Close()
			metrics.StoreInitializations.WithLabelValues(metrics.ResultError).Inc()
			return nil, &StoreInitError{Path: s.cfg.Path, Err: err}
		}

		s.conn = conn
		metrics.StoreInitializations.WithLabelValues(metrics.ResultSuccess).Inc()
		logger.Log.Info("Local store initialized",
			zap.String("path", s.cfg.Path),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, nil
	})

	return err
}

// Initialized reports whether the store has an open connection.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// Close closes the connection. Initialize may be called again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	err := db.Close(s.conn)
	s.conn = nil
	logger.Log.Info("Local store closed", zap.String("path", s.cfg.Path))
	return err
}

// Ping checks the open connection.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) db() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return nil, ErrNotInitialized
	}
	return s.conn, nil
}

func (s *Store) profiles() (repository.ProfileRepository, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	return repository.NewProfileRepository(conn), nil
}

func (s *Store) videos() (repository.VideoRepository, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	return repository.NewVideoRepository(conn), nil
}

// repos groups the repositories bound to one transaction.
type repos struct {
	profiles repository.ProfileRepository
	videos   repository.VideoRepository
}

// withTx runs fn in a transaction, committing when it returns nil. Reads and
// writes must both go through the repos passed to fn: the store keeps a
// single connection.
func (s *Store) withTx(ctx context.Context, fn func(r *repos) error) error {
	conn, err := s.db()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	r := &repos{
		profiles: repository.NewProfileRepository(tx),
		videos:   repository.NewVideoRepository(tx),
	}
	if err := fn(r); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Log.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// notFoundAsNil maps db.ErrNotFound to a nil record for the lookups that
// report absence as "no data".
func notFoundAsNil[T any](v *T, err error) (*T, error) {
	if db.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}
