package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a plain error response for failures that happen before
// any domain code runs, such as an undecodable body.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Warn("http error", "status", status, "message", message)
	h.WriteAppError(w, &internal.AppError{
		Type:       internal.ErrorTypeValidation,
		Code:       internal.ErrCodeValidationFailed,
		Message:    message,
		StatusCode: status,
	})
}

// WriteAppError renders err through the error taxonomy. Errors outside the
// taxonomy become a generic internal error.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, err error) {
	appErr, ok := internal.AsAppError(err)
	if !ok {
		h.Logger.Error("unclassified error", "error", err)
		appErr = internal.NewInternalError("Something went wrong", err)
	}

	switch {
	case appErr.StatusCode >= http.StatusInternalServerError:
		h.Logger.Error("request failed", "code", appErr.Code, "error", appErr)
	default:
		h.Logger.Info("request rejected", "code", appErr.Code, "message", appErr.Message)
	}

	if appErr.Redirect != "" {
		w.Header().Set("Location", appErr.Redirect)
	}
	status, body := appErr.ToHTTPResponse()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.WriteJSON(w, status, body)
}

// Redirect is the body of a navigation answered elsewhere.
type Redirect struct {
	Redirect string `json:"redirect"`
}

// WriteRedirect sends the client to path with 303 See Other.
func (h *BaseHandler) WriteRedirect(w http.ResponseWriter, path string) {
	w.Header().Set("Location", path)
	h.WriteJSON(w, http.StatusSeeOther, Redirect{Redirect: path})
}

// DecodeJSON reads the request body into dst, writing a 400 on failure.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
