package ledger

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/transport"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

type Handler struct {
	*transport.BaseHandler
	Ledger  *viewmodel.Slot[*View]
	History *viewmodel.Slot[*View]
}

func NewHandler(base *transport.BaseHandler, svc *Service) *Handler {
	return &Handler{
		BaseHandler: base,
		Ledger:      viewmodel.NewSlot("ledger", svc.OpenLedger, base.Logger),
		History:     viewmodel.NewSlot("history", svc.OpenHistory, base.Logger),
	}
}

// DeleteResult reports whether a delete went through.
type DeleteResult struct {
	Deleted bool     `json:"deleted"`
	View    Snapshot `json:"view"`
}

func (h *Handler) ShowLedger(w http.ResponseWriter, r *http.Request) {
	h.show(h.Ledger, w, r)
}

func (h *Handler) ShowHistory(w http.ResponseWriter, r *http.Request) {
	h.show(h.History, w, r)
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var draft Entry
	if !h.DecodeJSON(w, r, &draft) {
		return
	}
	if draft.PaymentType == "" {
		draft.PaymentType = DefaultPaymentType
	}

	view, err := h.Ledger.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if _, err := view.Create(r.Context(), draft); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.Logger.Info("ledger entry added", "model_name", draft.ModelName)
	h.WriteJSON(w, http.StatusCreated, view.Snapshot())
}

func (h *Handler) UpdateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	h.update(h.Ledger, w, r)
}

func (h *Handler) UpdateHistoryEntry(w http.ResponseWriter, r *http.Request) {
	h.update(h.History, w, r)
}

func (h *Handler) DeleteLedgerEntry(w http.ResponseWriter, r *http.Request) {
	h.delete(h.Ledger, w, r)
}

func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	h.delete(h.History, w, r)
}

// show is a navigation: a fresh view replaces the previous one. A failed
// load still renders the view's error state unless the session is gone.
func (h *Handler) show(slot *viewmodel.Slot[*View], w http.ResponseWriter, r *http.Request) {
	view, err := slot.Navigate(r.Context())
	if err != nil && (view == nil || internal.IsUnauthorized(err)) {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view.Snapshot())
}

func (h *Handler) update(slot *viewmodel.Slot[*View], w http.ResponseWriter, r *http.Request) {
	var edit Entry
	if !h.DecodeJSON(w, r, &edit) {
		return
	}

	view, err := slot.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if _, err := view.Update(r.Context(), chi.URLParam(r, "id"), edit); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view.Snapshot())
}

func (h *Handler) delete(slot *viewmodel.Slot[*View], w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	view, err := slot.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	deleted, err := view.Delete(r.Context(), chi.URLParam(r, "id"), func(Entry) bool { return confirmed })
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, DeleteResult{Deleted: deleted, View: view.Snapshot()})
}
