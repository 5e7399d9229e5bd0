package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Store   session.Store
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, store session.Store) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
		Store:       store,
	}
}

// LoginView mounts the login view. With a session present the client is
// sent on to its landing view.
func (h *Handler) LoginView(w http.ResponseWriter, r *http.Request) {
	snap := h.Service.Mount(r.Context())
	if snap.State == Authenticated {
		h.WriteRedirect(w, snap.Destination)
		return
	}
	h.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds gateway.Credentials
	if !h.DecodeJSON(w, r, &creds) {
		return
	}

	snap, err := h.Service.Submit(r.Context(), creds)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Logout(r.Context()); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, transport.Redirect{Redirect: guard.LoginView})
}

// SessionInfo describes who is logged in. The token itself is never echoed.
type SessionInfo struct {
	LoggedIn       bool          `json:"logged_in"`
	User           *session.User `json:"user,omitempty"`
	Landing        string        `json:"landing,omitempty"`
	TokenExpiresAt *time.Time    `json:"token_expires_at,omitempty"`
}

// Describe reads the current session without contacting the server.
func Describe(ctx context.Context, store session.Store) (SessionInfo, error) {
	current, err := store.Get(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return SessionInfo{}, nil
	}
	if err != nil {
		return SessionInfo{}, err
	}

	user := current.User
	info := SessionInfo{LoggedIn: true, User: &user, Landing: guard.Destination(current)}
	if exp, ok := session.TokenExpiry(current.Token); ok {
		info.TokenExpiresAt = &exp
	}
	return info, nil
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	info, err := Describe(r.Context(), h.Store)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, info)
}
