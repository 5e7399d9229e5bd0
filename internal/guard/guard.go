// Package guard decides whether a navigation may proceed given the cached
// session. It never talks to the remote service: a stale but present session
// counts as valid until a remote call reports otherwise.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/session"
)

type Access int

const (
	Public Access = iota
	AuthenticatedOnly
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case AuthenticatedOnly:
		return "authenticated"
	case AdminOnly:
		return "admin"
	}
	return "unknown"
}

const (
	LoginView   = internal.LoginPath
	LedgerView  = "/ledger"
	ReportsView = "/reports"
	HistoryView = "/history"
	UsersView   = "/all-users"

	// DefaultView is where authenticated users land.
	DefaultView = LedgerView
	// AdminView is where admins land after login.
	AdminView = UsersView
)

// Decision is the outcome of one navigation attempt.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	Access   Access `json:"-"`
}

type Guard struct {
	store  session.Store
	logger *slog.Logger

	mu     sync.RWMutex
	routes map[string]Access
}

// New returns a guard that knows the console views.
func New(store session.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		store:  store,
		logger: logger,
		routes: make(map[string]Access),
	}
	g.Register(LoginView, Public)
	g.Register(LedgerView, AuthenticatedOnly)
	g.Register(ReportsView, AuthenticatedOnly)
	g.Register(HistoryView, AuthenticatedOnly)
	g.Register(UsersView, AdminOnly)
	return g
}

// Register declares the access requirement for every path under prefix.
// Only the first path segment is significant.
func (g *Guard) Register(prefix string, access Access) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[firstSegment(prefix)] = access
}

// Lookup reports the access requirement for path.
func (g *Guard) Lookup(path string) (Access, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	access, ok := g.routes[firstSegment(path)]
	return access, ok
}

// Check evaluates one navigation attempt.
func (g *Guard) Check(ctx context.Context, path string) Decision {
	access, known := g.Lookup(path)
	if !known {
		return Decision{Redirect: LoginView}
	}
	if access == Public {
		return Decision{Allowed: true, Access: access}
	}

	current := g.current(ctx)
	if current == nil {
		return Decision{Redirect: LoginView, Access: access}
	}

	if access == AdminOnly && !current.IsAdmin() {
		return Decision{Redirect: DefaultView, Access: access}
	}

	return Decision{Allowed: true, Access: access}
}

// Destination is where a user with the given session lands by default.
func Destination(s *session.Session) string {
	if s.IsAdmin() {
		return AdminView
	}
	return DefaultView
}

// Link is one navigation entry.
type Link struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

type Navigation struct {
	LoggedIn bool   `json:"logged_in"`
	Admin    bool   `json:"admin"`
	Links    []Link `json:"links"`
	Auth     Link   `json:"auth"`
}

var viewLinks = []Link{
	{Title: "Ledger", Path: LedgerView},
	{Title: "Low Purchase History", Path: HistoryView},
	{Title: "Stock Reports", Path: ReportsView},
	{Title: "All Users", Path: UsersView},
}

// Navigation lists the views the current session may open and the login or
// logout action.
func (g *Guard) Navigation(ctx context.Context) Navigation {
	current := g.current(ctx)

	nav := Navigation{
		LoggedIn: current != nil,
		Admin:    current.IsAdmin(),
		Links:    []Link{},
		Auth:     Link{Title: "Login", Path: LoginView},
	}
	if current == nil {
		return nav
	}

	nav.Auth = Link{Title: "Logout", Path: "/logout"}
	for _, link := range viewLinks {
		if access, _ := g.Lookup(link.Path); access == AdminOnly && !nav.Admin {
			continue
		}
		nav.Links = append(nav.Links, link)
	}
	return nav
}

// current reads the cached session. A store failure counts as no session.
func (g *Guard) current(ctx context.Context) *session.Session {
	s, err := g.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			g.logger.Warn("failed to read session", "error", err)
		}
		return nil
	}
	return s
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	return "/" + path
}
