package report

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
	Reports *viewmodel.Slot[*View]
}

func NewHandler(base *transport.BaseHandler, svc *Service) *Handler {
	return &Handler{
		BaseHandler: base,
		Reports:     viewmodel.NewSlot("reports", svc.OpenReports, base.Logger),
	}
}

type DeleteResult struct {
	Deleted bool                       `json:"deleted"`
	View    viewmodel.Snapshot[Report] `json:"view"`
}

func (h *Handler) ShowReports(w http.ResponseWriter, r *http.Request) {
	view, err := h.Reports.Navigate(r.Context())
	if err != nil && (view == nil || internal.IsUnauthorized(err)) {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view.Snapshot())
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var draft Report
	if !h.DecodeJSON(w, r, &draft) {
		return
	}

	view, err := h.Reports.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if _, err := view.Create(r.Context(), draft); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, view.Snapshot())
}

func (h *Handler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	var edit Report
	if !h.DecodeJSON(w, r, &edit) {
		return
	}

	view, err := h.Reports.Ensure(r.Context())
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

func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	view, err := h.Reports.Ensure(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	deleted, err := view.Delete(r.Context(), chi.URLParam(r, "id"), func(Report) bool { return confirmed })
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, DeleteResult{Deleted: deleted, View: view.Snapshot()})
}
