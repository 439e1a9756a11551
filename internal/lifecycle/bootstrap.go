package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/ad-tracker/upload-scheduler-go/internal/config"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/ad-tracker/upload-scheduler-go/internal/preferences"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// LocalService is the offline side the bootstrapper prepares.
type LocalService interface {
	Initialize(ctx context.Context) error
	Close() error
	GetProfiles(ctx context.Context) ([]*models.Profile, error)
	CreateProfile(ctx context.Context, in *models.ProfileInput) (*models.Profile, error)
}

var _ LocalService = (*service.Offline)(nil)

// VersionHook runs once when the installed version differs from the one
// recorded at the previous start.
type VersionHook func(ctx context.Context, from, to string) error

// Bootstrapper runs the start-up sequence and the foreground/background
// handling.
type Bootstrapper struct {
	cfg        *config.Config
	controller *mode.Controller
	local      LocalService
	prefs      preferences.Store
	events     *Events

	mu       sync.Mutex
	hooks    []VersionHook
	observed bool
}

// New creates a Bootstrapper.
func New(cfg *config.Config, controller *mode.Controller, local LocalService, prefs preferences.Store, events *Events) *Bootstrapper {
	if events == nil {
		events = NewEvents()
	}
	return &Bootstrapper{
		cfg:        cfg,
		controller: controller,
		local:      local,
		prefs:      prefs,
		events:     events,
	}
}

// Events returns the hub the bootstrapper observes.
func (b *Bootstrapper) Events() *Events {
	return b.events
}

// AddVersionHook registers h for the next version change.
func (b *Bootstrapper) AddVersionHook(h VersionHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

// ColdStart settles the mode, opens the local store and performs first-run
// seeding. It must finish before any operation is dispatched.
func (b *Bootstrapper) ColdStart(ctx context.Context) error {
	b.observe()

	if b.cfg.App.IsNative() && b.cfg.Mode.ForceOfflineOnStart {
		if err := b.controller.ForceOffline(ctx); err != nil {
			return fmt.Errorf("force offline on start: %w", err)
		}
	} else if _, err := b.controller.Detect(ctx); err != nil {
		logger.Log.Warn("Mode detection incomplete", zap.Error(err))
	}

	if err := b.local.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize local store: %w", err)
	}

	if err := b.firstRun(ctx); err != nil {
		return err
	}

	logger.Log.Info("Cold start complete",
		zap.String("mode", string(b.controller.Mode())),
		zap.String("version", b.cfg.App.Version),
		zap.String("platform", b.cfg.App.Platform),
	)
	return nil
}

// Foreground reopens the store if a background transition closed it.
func (b *Bootstrapper) Foreground(ctx context.Context) error {
	return b.events.Emit(ctx, EventForeground)
}

// Background closes the store when configured to.
func (b *Bootstrapper) Background(ctx context.Context) error {
	return b.events.Emit(ctx, EventBackground)
}

func (b *Bootstrapper) observe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.observed {
		return
	}
	b.observed = true

	b.events.On(EventForeground, func(ctx context.Context) error {
		if err := b.local.Initialize(ctx); err != nil {
			return fmt.Errorf("reinitialize local store: %w", err)
		}
		logger.Log.Debug("Local store ready after foreground")
		return nil
	})
	b.events.On(EventBackground, func(_ context.Context) error {
		if !b.cfg.Lifecycle.CloseOnBackground {
			return nil
		}
		if err := b.local.Close(); err != nil {
			return fmt.Errorf("close local store: %w", err)
		}
		logger.Log.Debug("Local store closed for background")
		return nil
	})
}

func (b *Bootstrapper) firstRun(ctx context.Context) error {
	version := b.cfg.App.Version

	done, ok, err := b.prefs.Get(preferences.KeyFirstRunComplete)
	if err != nil {
		return fmt.Errorf("read first run marker: %w", err)
	}

	if !ok || done != "true" {
		if err := b.seed(ctx); err != nil {
			return err
		}
		if err := b.prefs.Set(preferences.KeyFirstRunComplete, "true"); err != nil {
			return fmt.Errorf("persist first run marker: %w", err)
		}
		if err := b.prefs.Set(preferences.KeyAppVersion, version); err != nil {
			return fmt.Errorf("persist app version: %w", err)
		}
		return nil
	}

	previous, _, err := b.prefs.Get(preferences.KeyAppVersion)
	if err != nil {
		return fmt.Errorf("read app version: %w", err)
	}
	if previous == version {
		return nil
	}

	b.mu.Lock()
	hooks := append([]VersionHook(nil), b.hooks...)
	b.mu.Unlock()

	logger.Log.Info("App version changed",
		zap.String("from", previous),
		zap.String("to", version),
		zap.Int("hooks", len(hooks)),
	)
	for _, h := range hooks {
		if err := h(ctx, previous, version); err != nil {
			return fmt.Errorf("version hook %s -> %s: %w", previous, version, err)
		}
	}

	if err := b.prefs.Set(preferences.KeyAppVersion, version); err != nil {
		return fmt.Errorf("persist app version: %w", err)
	}
	return nil
}

// seed creates the default profile unless the store already holds profiles,
// as after a reinstall that kept the database.
func (b *Bootstrapper) seed(ctx context.Context) error {
	existing, err := b.local.GetProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles for seeding: %w", err)
	}
	if len(existing) > 0 {
		logger.Log.Info("Skipping default profile, store already has profiles", zap.Int("count", len(existing)))
		return nil
	}

	def := b.cfg.Lifecycle.DefaultProfile
	p, err := b.local.CreateProfile(ctx, &models.ProfileInput{
		Name:        def.Name,
		ChannelName: def.ChannelName,
		ChannelLink: def.ChannelLink,
	})
	if err != nil {
		return fmt.Errorf("seed default profile: %w", err)
	}

	logger.Log.Info("Seeded default profile", zap.Int64("profileId", p.ID), zap.String("name", p.Name))
	return nil
}
