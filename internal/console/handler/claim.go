package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/infra/auth"
)

// ClaimsService Описываем, что нам нужно от сервиса заявок
type ClaimsService interface {
	CreateClaim(ctx context.Context, c *domain.Claim, actor domain.Actor) (*domain.Claim, error)
	GetClaim(ctx context.Context, claimID string) (*domain.Claim, error)
	ListClaims(ctx context.Context, f domain.ClaimFilter) ([]*domain.Claim, int64, error)
	GetHistory(ctx context.Context, claimID string) ([]domain.ClaimHistory, error)
	RecentHistory(ctx context.Context, days, limit int) ([]domain.ClaimHistory, error)
	GetStatistics(ctx context.Context) (*domain.ClaimStatistics, error)
	ProposeDecision(ctx context.Context, claimID string, proposed domain.ClaimStatus, actor domain.Actor, reason *string, approvedAmount *float64) (*domain.Claim, bool, error)
}

type ClaimsHandler struct {
	service ClaimsService
}

func NewClaimsHandler(s ClaimsService) *ClaimsHandler {
	return &ClaimsHandler{service: s}
}

// CreateRequest полезная нагрузка приема новой заявки
type CreateRequest struct {
	ClaimID       string   `json:"claim_id"`
	ClaimName     *string  `json:"claim_name"`
	CustomerID    string   `json:"customer_id"`
	PolicyID      *string  `json:"policy_id"`
	ClaimType     *string  `json:"claim_type"`
	NetworkStatus *string  `json:"network_status"`
	DateOfService *string  `json:"date_of_service"` // YYYY-MM-DD
	ClaimAmount   float64  `json:"claim_amount"`
	ErrorType     *string  `json:"error_type"`
	AIReasoning   *string  `json:"ai_reasoning"`
}

func (h *ClaimsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrValidation))
		return
	}

	c := &domain.Claim{
		ClaimID:       req.ClaimID,
		ClaimName:     req.ClaimName,
		CustomerID:    req.CustomerID,
		PolicyID:      req.PolicyID,
		ClaimType:     req.ClaimType,
		NetworkStatus: req.NetworkStatus,
		ClaimAmount:   req.ClaimAmount,
		ErrorType:     req.ErrorType,
		AIReasoning:   req.AIReasoning,
	}
	if req.DateOfService != nil {
		d, err := time.Parse("2006-01-02", *req.DateOfService)
		if err != nil {
			writeError(w, fmt.Errorf("date_of_service must be YYYY-MM-DD: %w", domain.ErrValidation))
			return
		}
		c.DateOfService = &d
	}

	created, err := h.service.CreateClaim(r.Context(), c, actorOr(r, domain.RoleAIAgent))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ClaimsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "id")

	c, err := h.service.GetClaim(r.Context(), claimID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClaimsHandler) List(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	h.list(w, r, f)
}

// ByCustomer выборка по клиенту — тот же листинг с фиксированным фильтром
func (h *ClaimsHandler) ByCustomer(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	f.CustomerID = chi.URLParam(r, "customerID")
	h.list(w, r, f)
}

func (h *ClaimsHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.ClaimStatus(chi.URLParam(r, "status"))
	if !status.Valid() {
		writeError(w, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation))
		return
	}
	f := filterFromQuery(r)
	f.Status = status
	h.list(w, r, f)
}

// SearchRequest фильтры POST /search (те же поля, что и query-параметры листинга)
type SearchRequest struct {
	CustomerID string  `json:"customer_id"`
	Status     string  `json:"status"`
	ClaimType  string  `json:"claim_type"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

func (h *ClaimsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrValidation))
		return
	}

	f := domain.ClaimFilter{
		CustomerID: req.CustomerID,
		ClaimType:  req.ClaimType,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if req.Status != "" {
		status := domain.ClaimStatus(req.Status)
		if !status.Valid() {
			writeError(w, fmt.Errorf("unknown status %q: %w", req.Status, domain.ErrValidation))
			return
		}
		f.Status = status
	}
	for _, p := range []struct {
		raw string
		dst **time.Time
	}{{derefOr(req.StartDate), &f.StartDate}, {derefOr(req.EndDate), &f.EndDate}} {
		if p.raw == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", p.raw)
		if err != nil {
			writeError(w, fmt.Errorf("dates must be YYYY-MM-DD: %w", domain.ErrValidation))
			return
		}
		*p.dst = &d
	}

	h.list(w, r, f)
}

func (h *ClaimsHandler) list(w http.ResponseWriter, r *http.Request, f domain.ClaimFilter) {
	claims, total, err := h.service.ListClaims(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": claims,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// UpdateStatusRequest предложение решения по заявке
type UpdateStatusRequest struct {
	NewStatus      string   `json:"new_status"`
	ChangeReason   *string  `json:"change_reason"`
	ApprovedAmount *float64 `json:"approved_amount"`
}

func (h *ClaimsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrValidation))
		return
	}

	proposed := domain.ClaimStatus(req.NewStatus)
	if !proposed.Valid() {
		writeError(w, fmt.Errorf("unknown status %q: %w", req.NewStatus, domain.ErrValidation))
		return
	}

	c, queued, err := h.service.ProposeDecision(r.Context(), claimID, proposed, actorOr(r, domain.RoleUser), req.ChangeReason, req.ApprovedAmount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claim":            c,
		"queued_for_review": queued,
	})
}

func (h *ClaimsHandler) History(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "id")

	history, err := h.service.GetHistory(r.Context(), claimID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claim_id": claimID,
		"history":  history,
		"total":    len(history),
	})
}

// RecentHistory общая лента изменений для виджета активности дашборда
func (h *ClaimsHandler) RecentHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := 7
	if v, err := strconv.Atoi(q.Get("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}
	limit := 100
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	history, err := h.service.RecentHistory(r.Context(), days, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":    days,
		"history": history,
		"total":   len(history),
	})
}

func (h *ClaimsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// filterFromQuery limit/offset и общие фильтры из query string.
// Пагинация ограничена сверху, чтобы листинг не превращался в полный дамп таблицы.
func filterFromQuery(r *http.Request) domain.ClaimFilter {
	q := r.URL.Query()
	f := domain.ClaimFilter{Limit: 100}

	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 1000 {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		f.Offset = v
	}
	if v := q.Get("customer_id"); v != "" {
		f.CustomerID = v
	}
	if v := q.Get("claim_type"); v != "" {
		f.ClaimType = v
	}
	if v := domain.ClaimStatus(q.Get("status")); v.Valid() {
		f.Status = v
	}
	return f
}

// actorOr актор из JWT-контекста; fallback для вызовов AI-пайплайна без персоны
func actorOr(r *http.Request, role string) domain.Actor {
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		return actor
	}
	return domain.Actor{Name: "api_user", Role: role}
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
