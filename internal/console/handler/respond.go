package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError маппит таксономию доменных ошибок на HTTP-коды.
// Нарушение state machine никогда не приглушается до 200/400 — всегда 409.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
