package domain

import "time"

// Роли акторов, фиксируемые в истории переходов
const (
	RoleAIAgent  = "AI Agent"
	RoleReviewer = "Reviewer"
	RoleUser     = "User"
)

// Actor аутентифицированный инициатор изменения. Передается явно в каждый
// вызов сервисов (вместо глобального состояния сессии).
type Actor struct {
	Name string
	Role string
}

// ClaimHistory строка append-only журнала переходов (таблица claimhistory).
// Инвариант: строки по claim_id в порядке timestamp образуют точную
// последовательность переходов, и new_status последней строки равен
// текущему статусу заявки.
type ClaimHistory struct {
	HistoryID    int64       `json:"history_id"`
	ClaimID      string      `json:"claim_id"`
	OldStatus    ClaimStatus `json:"old_status"`
	NewStatus    ClaimStatus `json:"new_status"`
	ChangedBy    string      `json:"changed_by"`
	Role         string      `json:"role"`
	ChangeReason *string     `json:"change_reason,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}
