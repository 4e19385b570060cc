package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

// AlertJournal читающий доступ к журналу событий guardrail/drift
type AlertJournal interface {
	GetRecentAlerts(ctx context.Context, limit int) ([]domain.AlertEvent, error)
}

type AlertsHandler struct {
	journal AlertJournal
}

func NewAlertsHandler(journal AlertJournal) *AlertsHandler {
	return &AlertsHandler{journal: journal}
}

func (h *AlertsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	alerts, err := h.journal.GetRecentAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}
