package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/config"
	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/store"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	var (
		dbPath    string
		direction string
		steps     int
	)

	flag.StringVar(&dbPath, "db", "", "SQLite database file (defaults to the configured store path)")
	flag.StringVar(&direction, "direction", "up", "Migration direction: up, down, or version")
	flag.IntVar(&steps, "steps", 0, "Number of steps to migrate (0 means all)")
	flag.Parse()

	if err := logger.Init("info", ""); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	dbCfg := &db.Config{Path: dbPath, BusyTimeout: 5 * time.Second}
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Log.Fatal("Failed to load config", zap.Error(err))
		}
		if !cfg.App.IsNative() {
			logger.Log.Fatal("An in-memory store has no schema to migrate; pass -db or use the native platform")
		}
		dbCfg = store.DatabaseConfig(cfg)
	}

	conn, err := db.Open(context.Background(), dbCfg)
	if err != nil {
		logger.Log.Fatal("Failed to open database", zap.String("path", dbCfg.Path), zap.Error(err))
	}
	defer db.Close(conn)

	m, err := db.NewMigrator(conn)
	if err != nil {
		logger.Log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
	default:
		logger.Log.Fatal("Invalid direction (must be 'up', 'down' or 'version')", zap.String("direction", direction))
	}

	if err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}

	version, dirty, ok, err := m.Version()
	if err != nil {
		logger.Log.Fatal("Failed to get migration version", zap.Error(err))
	}

	if !ok {
		logger.Log.Info("Migration completed successfully (no version)", zap.String("path", dbCfg.Path))
		return
	}
	logger.Log.Info("Migration completed successfully",
		zap.String("path", dbCfg.Path),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
}
