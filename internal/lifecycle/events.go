// Package lifecycle opens the local store at start-up and keeps it in step
// with foreground and background transitions.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Event is an application state transition.
type Event string

// Event constants.
const (
	EventForeground Event = "foreground"
	EventBackground Event = "background"
)

// Observer reacts to an event.
type Observer func(ctx context.Context) error

// Events fans transitions out to registered observers.
type Events struct {
	mu        sync.RWMutex
	observers map[Event][]Observer
}

// NewEvents creates an empty hub.
func NewEvents() *Events {
	return &Events{observers: make(map[Event][]Observer)}
}

// On registers fn for ev.
func (e *Events) On(ev Event, fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers[ev] = append(e.observers[ev], fn)
}

// Emit runs every observer of ev in registration order and joins their errors.
func (e *Events) Emit(ctx context.Context, ev Event) error {
	e.mu.RLock()
	observers := append([]Observer(nil), e.observers[ev]...)
	e.mu.RUnlock()

	var errs []error
	for _, fn := range observers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
