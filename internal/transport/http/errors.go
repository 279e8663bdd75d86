package http

import (
	"errors"
	"log/slog"
	"net/http"

	"invoicepro/internal/domain"
	"invoicepro/internal/observability/middleware"
)

// appHandler is a handler that reports failure by returning an error
// instead of writing it.
type appHandler func(w http.ResponseWriter, r *http.Request) error

// handle adapts an appHandler to http.HandlerFunc. Errors become the
// envelope with a status derived from their domain kind; causes are
// logged and never sent to the caller.
func handle(h appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		status, msg := statusFor(err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		middleware.Logger(r.Context()).Log(r.Context(), level, "request failed",
			"status", status,
			"msg", msg,
			"error", err,
			"path", r.URL.Path,
			"method", r.Method,
		)
		respond(w, status, msg, nil)
	}
}

func statusFor(err error) (int, string) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, "Internal server error"
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, de.Message
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized, de.Message
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, de.Message
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, de.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
