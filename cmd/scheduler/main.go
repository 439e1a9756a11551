package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/config"
	"github.com/ad-tracker/upload-scheduler-go/internal/files"
	"github.com/ad-tracker/upload-scheduler-go/internal/handler"
	"github.com/ad-tracker/upload-scheduler-go/internal/lifecycle"
	"github.com/ad-tracker/upload-scheduler-go/internal/media"
	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/ad-tracker/upload-scheduler-go/internal/preferences"
	"github.com/ad-tracker/upload-scheduler-go/internal/remote"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/internal/service/quota"
	"github.com/ad-tracker/upload-scheduler-go/internal/store"
	"github.com/ad-tracker/upload-scheduler-go/internal/validation"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"

	"go.uber.org/zap"
)

const preferencesFile = "preferences.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Log.Error("Scheduler stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	logger.Log.Info("Starting upload scheduler",
		zap.String("version", cfg.App.Version),
		zap.String("platform", cfg.App.Platform),
		zap.String("dataDir", cfg.App.DataDir),
	)

	st := store.New(store.DatabaseConfig(cfg))
	fm, err := files.NewManager(cfg.Files.Root)
	if err != nil {
		return fmt.Errorf("create file area: %w", err)
	}
	offline := service.NewOffline(st, fm, media.NewFFmpeg(cfg.Media), validation.New(0, 0, true))
	defer func() {
		if err := offline.Close(); err != nil {
			logger.Log.Error("Failed to close local store", zap.Error(err))
		}
	}()

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Timeout, nil)

	var prefs preferences.Store = preferences.NewMemory()
	if cfg.App.IsNative() {
		prefs = preferences.NewFile(filepath.Join(cfg.App.DataDir, preferencesFile))
	}

	controller := mode.NewController(client, prefs, mode.Platform{
		Native:         cfg.App.IsNative(),
		NetworkCapable: cfg.App.NetworkCapable,
	})
	controller.Subscribe(func(m mode.Mode) {
		logger.Log.Info("Connectivity mode changed", zap.String("mode", string(m)))
	})

	svc := mode.NewSwitch(controller, remote.NewService(client), offline)

	boot := lifecycle.New(cfg, controller, offline, prefs, nil)
	if err := boot.ColdStart(ctx); err != nil {
		return fmt.Errorf("cold start: %w", err)
	}

	router := handler.NewRouter(handler.Deps{
		Service:    svc,
		Files:      fm,
		Budget:     quota.NewManager(svc, cfg.Push.DailyLimit, cfg.Push.ThresholdPercent),
		Controller: controller,
		Lifecycle:  boot,
		Store:      st,
		APIKeys:    cfg.Server.APIKeys,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("mode", string(controller.Mode())),
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Log.Error("Failed to close server", zap.Error(err))
			}
			return err
		}

		if err := fm.CleanTemp(); err != nil {
			logger.Log.Warn("Failed to clean temp area", zap.Error(err))
		}

		logger.Log.Info("Server stopped gracefully")
		return nil
	}
}
