package domain

import "time"

// Типы событий журнала алертов
const (
	AlertTypeDrift    = "DRIFT"
	AlertTypeHITLFlag = "HITL_FLAG"
	AlertTypeFraud    = "FRAUD"
)

// AlertEvent событие мониторинга/guardrail для журнала alert_events.
// Пишется асинхронно пачками: это сигнал наблюдаемости, не commit-гейт,
// отставание на доли секунды допустимо.
type AlertEvent struct {
	ID        string    `json:"id"` // UUID события
	RunID     string    `json:"run_id,omitempty"`
	ClaimID   string    `json:"claim_id,omitempty"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
