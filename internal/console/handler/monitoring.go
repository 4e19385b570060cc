package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/drift"
)

// MonitoringFeed Описываем, что нам нужно от снапшота мониторинга.
// Снапшот в памяти, поэтому методы без контекста и без ошибок.
type MonitoringFeed interface {
	AllRuns() []domain.MonitoringRun
	Latest() (domain.MonitoringRun, bool)
	History(limit int) []domain.MonitoringRun
	CurrentDrift() drift.Report
}

type MonitoringHandler struct {
	feed MonitoringFeed
}

func NewMonitoringHandler(feed MonitoringFeed) *MonitoringHandler {
	return &MonitoringHandler{feed: feed}
}

func (h *MonitoringHandler) All(w http.ResponseWriter, r *http.Request) {
	runs := h.feed.AllRuns()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *MonitoringHandler) Latest(w http.ResponseWriter, r *http.Request) {
	run, ok := h.feed.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no monitoring runs loaded"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *MonitoringHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	runs := h.feed.History(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// LatestMetrics срез только метрик последнего прогона — для виджетов дашборда
func (h *MonitoringHandler) LatestMetrics(w http.ResponseWriter, r *http.Request) {
	run, ok := h.feed.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no monitoring runs loaded"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  run.RunID,
		"window":  run.MonitoringWindow,
		"metrics": run.Metrics,
		"drift":   run.Drift,
		"status":  run.Status,
	})
}
