package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

// stubClaimsService управляемые ответы для проверки HTTP-слоя
type stubClaimsService struct {
	claim  *domain.Claim
	queued bool
	err    error
}

func (s *stubClaimsService) CreateClaim(_ context.Context, c *domain.Claim, _ domain.Actor) (*domain.Claim, error) {
	if s.err != nil {
		return nil, s.err
	}
	c.Status = domain.StatusPending
	return c, nil
}

func (s *stubClaimsService) GetClaim(context.Context, string) (*domain.Claim, error) {
	return s.claim, s.err
}

func (s *stubClaimsService) ListClaims(context.Context, domain.ClaimFilter) ([]*domain.Claim, int64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*domain.Claim{s.claim}, 1, nil
}

func (s *stubClaimsService) GetHistory(context.Context, string) ([]domain.ClaimHistory, error) {
	return []domain.ClaimHistory{}, s.err
}

func (s *stubClaimsService) RecentHistory(context.Context, int, int) ([]domain.ClaimHistory, error) {
	return []domain.ClaimHistory{}, s.err
}

func (s *stubClaimsService) GetStatistics(context.Context) (*domain.ClaimStatistics, error) {
	return &domain.ClaimStatistics{Total: 3}, s.err
}

func (s *stubClaimsService) ProposeDecision(context.Context, string, domain.ClaimStatus, domain.Actor, *string, *float64) (*domain.Claim, bool, error) {
	return s.claim, s.queued, s.err
}

func testRouter(svc ClaimsService) *chi.Mux {
	h := NewClaimsHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/claims/", h.Create)
	r.Get("/api/claims/", h.List)
	r.Get("/api/claims/{id}", h.Get)
	r.Put("/api/claims/{id}/status", h.UpdateStatus)
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestClaimsHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation maps to 400", domain.ErrValidation, http.StatusBadRequest},
		{"not found maps to 404", domain.ErrNotFound, http.StatusNotFound},
		{"invalid transition maps to 409", domain.ErrInvalidTransition, http.StatusConflict},
		{"invalid state maps to 409", domain.ErrInvalidState, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRouter(&stubClaimsService{err: tt.err})
			rec := doRequest(t, r, http.MethodGet, "/api/claims/CLM-1", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestClaimsHandler_Create(t *testing.T) {
	r := testRouter(&stubClaimsService{})

	rec := doRequest(t, r, http.MethodPost, "/api/claims/",
		`{"claim_id": "CLM-1", "customer_id": "CUST-1", "claim_amount": 120.5, "date_of_service": "2026-08-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var c domain.Claim
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "CLM-1", c.ClaimID)
	assert.Equal(t, domain.StatusPending, c.Status)
	require.NotNil(t, c.DateOfService)

	// Мусорное тело и кривая дата — ошибка клиента
	rec = doRequest(t, r, http.MethodPost, "/api/claims/", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/api/claims/",
		`{"claim_id": "CLM-2", "customer_id": "CUST-1", "date_of_service": "15.08.2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimsHandler_ListEnvelope(t *testing.T) {
	r := testRouter(&stubClaimsService{claim: &domain.Claim{ClaimID: "CLM-1", Status: domain.StatusPending}})

	rec := doRequest(t, r, http.MethodGet, "/api/claims/?limit=25&offset=50", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Claims []domain.Claim `json:"claims"`
		Total  int64          `json:"total"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Claims, 1)
	assert.Equal(t, int64(1), body.Total)
	assert.Equal(t, 25, body.Limit)
	assert.Equal(t, 50, body.Offset)
}

func TestClaimsHandler_UpdateStatus(t *testing.T) {
	svc := &stubClaimsService{claim: &domain.Claim{ClaimID: "CLM-1", Status: domain.StatusPending}, queued: true}
	r := testRouter(svc)

	rec := doRequest(t, r, http.MethodPut, "/api/claims/CLM-1/status",
		`{"new_status": "Approved", "approved_amount": 100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Queued bool `json:"queued_for_review"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Queued)

	// Статус вне enum отбрасывается до вызова сервиса
	rec = doRequest(t, r, http.MethodPut, "/api/claims/CLM-1/status", `{"new_status": "Escalated"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
