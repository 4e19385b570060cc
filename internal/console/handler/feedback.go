package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

type FeedbackService interface {
	Submit(ctx context.Context, f *domain.Feedback) error
	List(ctx context.Context) ([]*domain.Feedback, error)
}

type FeedbackHandler struct {
	service FeedbackService
}

func NewFeedbackHandler(s FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: s}
}

func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var f domain.Feedback
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrValidation))
		return
	}

	if err := h.service.Submit(r.Context(), &f); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &f)
}

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feedback": items,
		"total":    len(items),
	})
}
