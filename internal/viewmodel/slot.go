package viewmodel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frahmantamala/ledger-console/internal/core/events"
)

// View is a torn-down-able view model.
type View interface {
	Load(ctx context.Context) error
	Close()
}

// Subscriber is the part of the event bus a slot listens on.
type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

// Slot holds the live instance of one view. Navigating replaces it; a
// destroyed session closes it.
type Slot[V View] struct {
	name   string
	open   func(ctx context.Context) (V, error)
	logger *slog.Logger

	mu      sync.Mutex
	current V
	live    bool
}

func NewSlot[V View](name string, open func(ctx context.Context) (V, error), logger *slog.Logger) *Slot[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slot[V]{name: name, open: open, logger: logger}
}

// Navigate closes the previous instance, opens a fresh one and loads it.
// The new instance is returned even when the load fails so the caller can
// render its error state.
func (s *Slot[V]) Navigate(ctx context.Context) (V, error) {
	view, err := s.open(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	s.mu.Lock()
	prev, hadPrev := s.current, s.live
	s.current, s.live = view, true
	s.mu.Unlock()

	if hadPrev {
		prev.Close()
	}

	return view, view.Load(ctx)
}

// Ensure returns the live instance, navigating first when there is none.
func (s *Slot[V]) Ensure(ctx context.Context) (V, error) {
	if view, ok := s.Current(); ok {
		return view, nil
	}
	return s.Navigate(ctx)
}

func (s *Slot[V]) Current() (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.live
}

// Close tears down the live instance, if any.
func (s *Slot[V]) Close() {
	s.mu.Lock()
	view, live := s.current, s.live
	var zero V
	s.current, s.live = zero, false
	s.mu.Unlock()

	if live {
		view.Close()
		s.logger.Debug("view torn down", "view", s.name)
	}
}

// CloseOn tears the view down whenever eventType is published.
func (s *Slot[V]) CloseOn(bus Subscriber, eventType string) {
	bus.Subscribe(eventType, func(_ context.Context, _ events.Event) error {
		s.Close()
		return nil
	})
}
