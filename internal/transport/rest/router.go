package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/ledger-console/api"
	"github.com/frahmantamala/ledger-console/internal/auth"
	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/ledger"
	"github.com/frahmantamala/ledger-console/internal/report"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/transport"
	"github.com/frahmantamala/ledger-console/internal/transport/middleware"
	"github.com/frahmantamala/ledger-console/internal/transport/swagger"
	"github.com/frahmantamala/ledger-console/internal/user"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

// Handlers groups everything the console router serves.
type Handlers struct {
	Auth    *auth.Handler
	Ledger  *ledger.Handler
	Reports *report.Handler
	Users   *user.Handler
}

// publicPaths are served regardless of the session.
var publicPaths = []string{"/logout", "/session", "/nav", "/health", "/ping", "/openapi.yml", "/swagger"}

func RegisterAllRoutes(router *chi.Mux, h Handlers, g *guard.Guard, store session.Store, logger *slog.Logger) {
	base := transport.NewBaseHandler(logger)
	healthHandler := NewHealthHandler(base, store)

	for _, p := range publicPaths {
		g.Register(p, guard.Public)
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery(base))
	router.Use(middleware.Guard(g, base))

	router.Get("/openapi.yml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Document)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Get("/health", healthHandler.Health)
	router.Get("/ping", healthHandler.Ping)

	router.Get("/nav", func(w http.ResponseWriter, r *http.Request) {
		base.WriteJSON(w, http.StatusOK, g.Navigation(r.Context()))
	})

	router.Get("/login", h.Auth.LoginView)
	router.Post("/login", h.Auth.Login)
	router.Post("/logout", h.Auth.Logout)
	router.Get("/session", h.Auth.Session)

	router.Route("/ledger", func(r chi.Router) {
		r.Get("/", h.Ledger.ShowLedger)
		r.Post("/", h.Ledger.CreateEntry)
		r.Put("/{id}", h.Ledger.UpdateLedgerEntry)
		r.Delete("/{id}", h.Ledger.DeleteLedgerEntry)
	})

	router.Route("/history", func(r chi.Router) {
		r.Get("/", h.Ledger.ShowHistory)
		r.Put("/{id}", h.Ledger.UpdateHistoryEntry)
		r.Delete("/{id}", h.Ledger.DeleteHistoryEntry)
	})

	router.Route("/reports", func(r chi.Router) {
		r.Get("/", h.Reports.ShowReports)
		r.Post("/", h.Reports.CreateReport)
		r.Put("/{id}", h.Reports.UpdateReport)
		r.Delete("/{id}", h.Reports.DeleteReport)
	})

	router.Route("/all-users", func(r chi.Router) {
		r.Get("/", h.Users.ShowUsers)
		r.Post("/", h.Users.CreateUser)
		r.Post("/{id}/permissions/{capability}/toggle", h.Users.TogglePermission)
	})
}

// CloseViewsOn tears every live view down whenever eventType is published.
func (h Handlers) CloseViewsOn(bus viewmodel.Subscriber, eventType string) {
	h.Ledger.Ledger.CloseOn(bus, eventType)
	h.Ledger.History.CloseOn(bus, eventType)
	h.Reports.Reports.CloseOn(bus, eventType)
	h.Users.Users.CloseOn(bus, eventType)
}
