package rest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/auth"
	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/core/events"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/ledger"
	"github.com/frahmantamala/ledger-console/internal/notice"
	"github.com/frahmantamala/ledger-console/internal/report"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/transport"
	"github.com/frahmantamala/ledger-console/internal/user"
)

// Console is the wired console: its router and the state its views share.
type Console struct {
	Router *chi.Mux
	Bus    *events.EventBus
	Store  *session.Notifier
	Guard  *guard.Guard
	Auth   *auth.Service
	Client *gateway.Client
}

// NewConsole wires every view on top of store. Views are torn down and the
// login flow reset whenever the session is cleared.
func NewConsole(cfg *internal.Config, store session.Store, logger *slog.Logger) (*Console, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bus := events.NewEventBus(logger)
	notifier := session.NewNotifier(store, bus, logger)

	client := gateway.NewClient(gateway.Config{
		BaseURL:              cfg.API.BaseURL,
		Timeout:              cfg.API.Timeout,
		AssignPermissionPath: cfg.API.AssignPermissionPath,
		PermissionField:      cfg.API.PermissionField,
	}, logger)

	v := validation.NewValidator()
	base := transport.NewBaseHandler(logger)

	authService := auth.NewService(client, notifier, v, logger)

	ledgerService, err := ledger.NewService(client, notifier, v, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up ledger: %w", err)
	}
	reportService, err := report.NewService(client, notifier, v, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up reports: %w", err)
	}
	userService := user.NewService(client, notifier, v, notice.New(cfg.Notice.Duration), logger)

	handlers := Handlers{
		Auth:    auth.NewHandler(base, authService, notifier),
		Ledger:  ledger.NewHandler(base, ledgerService),
		Reports: report.NewHandler(base, reportService),
		Users:   user.NewHandler(base, userService),
	}
	handlers.CloseViewsOn(bus, events.EventTypeSessionCleared)
	bus.Subscribe(events.EventTypeSessionCleared, func(_ context.Context, _ events.Event) error {
		authService.Reset()
		return nil
	})

	g := guard.New(notifier, logger)
	router := chi.NewRouter()
	RegisterAllRoutes(router, handlers, g, notifier, logger)

	return &Console{
		Router: router,
		Bus:    bus,
		Store:  notifier,
		Guard:  g,
		Auth:   authService,
		Client: client,
	}, nil
}
