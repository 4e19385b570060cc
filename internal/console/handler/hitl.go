package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

// ReviewQueueService Описываем, что нам нужно от сервиса очереди ревью
type ReviewQueueService interface {
	PendingQueue(ctx context.Context, limit int) ([]*domain.HITLQueueEntry, error)
	GetByClaim(ctx context.Context, claimID string) (*domain.HITLQueueEntry, error)
	Assign(ctx context.Context, queueID, userID int64) (*domain.HITLQueueEntry, error)
	SubmitReview(ctx context.Context, queueID int64, decision string, comments *string, actor domain.Actor, approvedAmount *float64) (*domain.HITLQueueEntry, *domain.Claim, error)
	Statistics(ctx context.Context) (*domain.QueueStatistics, error)
}

type HITLHandler struct {
	service ReviewQueueService
}

func NewHITLHandler(s ReviewQueueService) *HITLHandler {
	return &HITLHandler{service: s}
}

func (h *HITLHandler) Queue(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	items, err := h.service.PendingQueue(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending_items": items,
		"total":         len(items),
	})
}

func (h *HITLHandler) ByClaim(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")

	entry, err := h.service.GetByClaim(r.Context(), claimID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type AssignRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *HITLHandler) Assign(w http.ResponseWriter, r *http.Request) {
	queueID, err := strconv.ParseInt(chi.URLParam(r, "queueID"), 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("queue id must be numeric: %w", domain.ErrValidation))
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, fmt.Errorf("user_id is required: %w", domain.ErrValidation))
		return
	}

	entry, err := h.service.Assign(r.Context(), queueID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type ReviewRequest struct {
	Decision         string   `json:"decision"` // Approved | Denied
	ReviewerComments *string  `json:"reviewer_comments"`
	ApprovedAmount   *float64 `json:"approved_amount"`
}

func (h *HITLHandler) Review(w http.ResponseWriter, r *http.Request) {
	queueID, err := strconv.ParseInt(chi.URLParam(r, "queueID"), 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("queue id must be numeric: %w", domain.ErrValidation))
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrValidation))
		return
	}

	entry, claim, err := h.service.SubmitReview(r.Context(), queueID, req.Decision, req.ReviewerComments, actorOr(r, domain.RoleReviewer), req.ApprovedAmount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queue_entry": entry,
		"claim":       claim,
	})
}

func (h *HITLHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
