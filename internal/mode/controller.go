// Package mode decides per request whether the remote API or the local store
// serves it, and fails over to the local store when the network drops.
package mode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ad-tracker/upload-scheduler-go/internal/metrics"
	"github.com/ad-tracker/upload-scheduler-go/internal/preferences"
	"github.com/ad-tracker/upload-scheduler-go/internal/remote"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// Mode is the controller's connectivity state.
type Mode string

// Mode constants.
const (
	Online    Mode = "online"
	Offline   Mode = "offline"
	Detecting Mode = "detecting"
)

// Values stored under preferences.KeyOfflineMode.
const (
	PrefForcedOffline = "forced-offline"
	PrefAutoOffline   = "true"
	PrefOnline        = "false"
)

var (
	// ErrNoOfflineHandler is returned when a request must be served offline
	// but the caller gave no offline handler.
	ErrNoOfflineHandler = errors.New("offline mode requires an offline handler")

	// ErrNetworkUnavailable is returned by ForceOnline on a platform without
	// network access.
	ErrNetworkUnavailable = errors.New("network is not available on this platform")
)

// Platform describes the host the controller runs on.
type Platform struct {
	Native         bool
	NetworkCapable bool
}

// Handler serves one request from the local store.
type Handler func(ctx context.Context) (json.RawMessage, error)

// Controller owns the current mode. Safe for concurrent use.
type Controller struct {
	requester remote.Requester
	prefs     preferences.Store
	platform  Platform

	mu        sync.RWMutex
	mode      Mode
	listeners map[int]func(Mode)
	nextID    int
}

// NewController creates a controller in the detecting state.
func NewController(requester remote.Requester, prefs preferences.Store, platform Platform) *Controller {
	c := &Controller{
		requester: requester,
		prefs:     prefs,
		platform:  platform,
		mode:      Detecting,
		listeners: make(map[int]func(Mode)),
	}
	metrics.SetMode(string(Detecting), allModes...)
	return c
}

var allModes = []string{string(Online), string(Offline), string(Detecting)}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// IsOffline reports whether requests currently go to the local store.
func (c *Controller) IsOffline() bool {
	return c.Mode() == Offline
}

// Platform returns the host description.
func (c *Controller) Platform() Platform {
	return c.platform
}

// Subscribe registers fn for mode changes. The returned func removes it.
func (c *Controller) Subscribe(fn func(Mode)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// ForceOffline switches to offline and remembers the choice.
func (c *Controller) ForceOffline(_ context.Context) error {
	c.setMode(Offline)
	if err := c.prefs.Set(preferences.KeyOfflineMode, PrefForcedOffline); err != nil {
		return fmt.Errorf("persist offline mode: %w", err)
	}
	logger.Log.Info("Offline mode forced")
	return nil
}

// ForceOnline switches to online and remembers the choice.
func (c *Controller) ForceOnline(_ context.Context) error {
	if !c.platform.NetworkCapable {
		return ErrNetworkUnavailable
	}
	c.setMode(Online)
	if err := c.prefs.Set(preferences.KeyOfflineMode, PrefOnline); err != nil {
		return fmt.Errorf("persist online mode: %w", err)
	}
	logger.Log.Info("Online mode forced")
	return nil
}

// Detect resolves the mode from the platform and the stored preference.
// A native install with nothing stored starts offline.
func (c *Controller) Detect(_ context.Context) (Mode, error) {
	c.setMode(Detecting)

	if !c.platform.Native {
		c.setMode(Online)
		return Online, nil
	}

	pref, ok, err := c.prefs.Get(preferences.KeyOfflineMode)
	if err != nil {
		logger.Log.Warn("Failed to read mode preference, starting offline", zap.Error(err))
		c.setMode(Offline)
		return Offline, fmt.Errorf("read mode preference: %w", err)
	}

	next := Offline
	if ok && pref == PrefOnline {
		next = Online
	}
	c.setMode(next)

	logger.Log.Info("Mode detected",
		zap.String("mode", string(next)),
		zap.String("preference", pref),
	)
	return next, nil
}

// APIRequest sends endpoint to the remote API when online and to offline
// otherwise. A failover-eligible failure with a handler switches to offline
// and returns the handler's result.
func (c *Controller) APIRequest(ctx context.Context, endpoint string, opts remote.RequestOptions, offline Handler) (json.RawMessage, error) {
	online := func(ctx context.Context) (json.RawMessage, error) {
		return c.requester.Request(ctx, endpoint, opts)
	}

	return Call[json.RawMessage](ctx, c, endpoint, online, offline)
}

// Call runs online or offline according to the controller's mode, with the
// same failover rule as APIRequest. op names the call in logs.
func Call[T any](ctx context.Context, c *Controller, op string, online, offline func(context.Context) (T, error)) (T, error) {
	var zero T

	if c.resolve(ctx) == Offline {
		if offline == nil {
			return zero, ErrNoOfflineHandler
		}
		v, err := offline(ctx)
		metrics.Requests.WithLabelValues(metrics.BackendOffline, metrics.Outcome(err)).Inc()
		return v, err
	}

	v, err := online(ctx)
	if err == nil {
		metrics.Requests.WithLabelValues(metrics.BackendRemote, metrics.ResultSuccess).Inc()
		return v, nil
	}
	// A caller that gave up is not a network failure.
	if offline == nil || ctx.Err() != nil || !IsFailoverError(err) {
		metrics.Requests.WithLabelValues(metrics.BackendRemote, metrics.ResultError).Inc()
		return zero, err
	}

	metrics.Requests.WithLabelValues(metrics.BackendRemote, metrics.ResultFailover).Inc()
	logger.Log.Warn("Remote request failed, switching to offline",
		zap.String("op", op),
		zap.Error(err),
	)
	c.failover()

	v, err = offline(ctx)
	metrics.Requests.WithLabelValues(metrics.BackendOffline, metrics.Outcome(err)).Inc()
	return v, err
}

// IsFailoverError reports whether err should move the controller offline:
// a transport failure or a 5xx response.
func IsFailoverError(err error) bool {
	var netErr *remote.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *remote.HTTPError
	return errors.As(err, &httpErr) && httpErr.ServerError()
}

// resolve finishes detection when a request arrives before it ran.
func (c *Controller) resolve(ctx context.Context) Mode {
	if m := c.Mode(); m != Detecting {
		return m
	}
	m, _ := c.Detect(ctx)
	return m
}

func (c *Controller) failover() {
	c.setMode(Offline)
	metrics.Failovers.Inc()
	if err := c.prefs.Set(preferences.KeyOfflineMode, PrefAutoOffline); err != nil {
		logger.Log.Warn("Failed to persist offline mode", zap.Error(err))
	}
}

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	changed := c.mode != m
	c.mode = m
	var notify []func(Mode)
	if changed {
		notify = make([]func(Mode), 0, len(c.listeners))
		for _, fn := range c.listeners {
			notify = append(notify, fn)
		}
	}
	c.mu.Unlock()

	if !changed {
		return
	}
	metrics.SetMode(string(m), allModes...)
	for _, fn := range notify {
		fn(m)
	}
}
