package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/finsightx/alert-engine/internal/domain"
)

// writeError maps a store error to an HTTP status and writes it.
func (h *Handlers) writeError(w http.ResponseWriter, err error, op string, attrs ...any) {
	var transition *domain.InvalidTransitionError

	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.As(err, &transition):
		http.Error(w, transition.Error(), http.StatusConflict)
		return
	case errors.Is(err, domain.ErrVersionMismatch), errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.metrics.RecordError()
	slog.Error("Failed to "+op, append(attrs, "error", err)...)
	http.Error(w, "Failed to "+op, http.StatusInternalServerError)
}
