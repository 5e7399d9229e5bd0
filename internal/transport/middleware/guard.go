package middleware

import (
	"net/http"

	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/transport"
)

// Guard runs every request through the route guard. A refused navigation is
// answered with 303 See Other pointing at the guard's redirect.
func Guard(g *guard.Guard, base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.Check(r.Context(), r.URL.Path)
			if !decision.Allowed {
				base.Logger.Info("navigation refused",
					"path", r.URL.Path,
					"access", decision.Access.String(),
					"redirect", decision.Redirect)
				base.WriteRedirect(w, decision.Redirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
