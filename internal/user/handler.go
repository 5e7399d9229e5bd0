package user

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/permission"
	"github.com/frahmantamala/ledger-console/internal/transport"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

type Handler struct {
	*transport.BaseHandler
	Users *viewmodel.Slot[*View]
}

func NewHandler(base *transport.BaseHandler, svc *Service) *Handler {
	return &Handler{
		BaseHandler: base,
		Users:       viewmodel.NewSlot("users", svc.OpenUsers, base.Logger),
	}
}

// ShowUsers handles GET /all-users
func (h *Handler) ShowUsers(w http.ResponseWriter, r *http.Request) {
	view, err := h.Users.Navigate(r.Context())
	if err != nil && (view == nil || internal.IsUnauthorized(err)) {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view.Snapshot())
}

// CreateUser handles POST /all-users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var form NewUser
	if !h.DecodeJSON(w, r, &form) {
		return
	}
	if form.Role == "" {
		form.Role = "user"
	}

	view, err := h.Users.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if _, err := view.CreateUser(r.Context(), form); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, view.Snapshot())
}

// TogglePermission handles POST /all-users/{id}/permissions/{capability}/toggle
func (h *Handler) TogglePermission(w http.ResponseWriter, r *http.Request) {
	capability, err := permission.ParseCapability(chi.URLParam(r, "capability"))
	if err != nil {
		h.WriteAppError(w, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidChoice))
		return
	}

	view, err := h.Users.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if _, err := view.Toggle(r.Context(), chi.URLParam(r, "id"), capability); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view.Snapshot())
}
