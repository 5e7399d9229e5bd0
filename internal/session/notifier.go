package session

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/ledger-console/internal/core/events"
)

// Publisher is the part of the event bus the notifier needs.
type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// Notifier wraps a Store and announces every session start and destruction,
// so components bound to the session can tear themselves down.
type Notifier struct {
	Store
	bus    Publisher
	logger *slog.Logger
}

func NewNotifier(store Store, bus Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{Store: store, bus: bus, logger: logger}
}

func (n *Notifier) Set(ctx context.Context, s Session) error {
	if err := n.Store.Set(ctx, s); err != nil {
		return err
	}
	n.logger.Info("session started", "user_id", s.User.ID, "role", s.User.Role)
	if err := n.bus.PublishSync(ctx, events.NewSessionStartedEvent(s.User.ID, string(s.User.Role))); err != nil {
		n.logger.Warn("session started subscribers failed", "error", err)
	}
	return nil
}

func (n *Notifier) Clear(ctx context.Context) error {
	if err := n.Store.Clear(ctx); err != nil {
		return err
	}
	n.logger.Info("session cleared")
	if err := n.bus.PublishSync(ctx, events.NewSessionClearedEvent()); err != nil {
		n.logger.Warn("session cleared subscribers failed", "error", err)
	}
	return nil
}
