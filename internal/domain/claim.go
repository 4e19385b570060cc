package domain

import (
	"time"
)

// Статусы State Machine жизненного цикла заявки
type ClaimStatus string

const (
	// StatusNew — псевдо-начальное состояние. В таблице proposedclaim оно не хранится,
	// используется только как old_status самой первой записи в истории (New -> Pending).
	StatusNew ClaimStatus = "New"

	StatusPending  ClaimStatus = "Pending"
	StatusApproved ClaimStatus = "Approved"
	StatusDenied   ClaimStatus = "Denied"

	// StatusWithdrawn — полноценное четвертое терминальное состояние.
	// Исходная схема ограничивала CHECK тремя статусами, но статистика и фильтры
	// дашборда уже считали Withdrawn — моделируем явно, а не как надстройку над Pending.
	StatusWithdrawn ClaimStatus = "Withdrawn"
)

// IsTerminal терминальные статусы «липкие»: обычный transition из них запрещен
func (s ClaimStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusWithdrawn
}

// Valid проверяет, что статус входит в закрытый список схемы БД
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusWithdrawn:
		return true
	}
	return false
}

// Claim каноническая запись заявки на возмещение (таблица proposedclaim).
// Создается один раз при приеме со статусом Pending, меняется только через
// зафиксированный transition и никогда не удаляется.
type Claim struct {
	ClaimID        string     `json:"claim_id"`
	ClaimName      *string    `json:"claim_name,omitempty"`
	CustomerID     string     `json:"customer_id"`
	PolicyID       *string    `json:"policy_id,omitempty"`
	ClaimType      *string    `json:"claim_type,omitempty"`
	NetworkStatus  *string    `json:"network_status,omitempty"` // Сегмент для drift-мониторинга
	DateOfService  *time.Time `json:"date_of_service,omitempty"`
	ClaimAmount    float64    `json:"claim_amount"`
	ApprovedAmount float64    `json:"approved_amount"`
	Status         ClaimStatus `json:"claim_status"`
	ErrorType      *string    `json:"error_type,omitempty"`
	AIReasoning    *string    `json:"ai_reasoning,omitempty"`
	PaymentStatus  string     `json:"payment_status"`

	// Результаты guardrail-проверок. Типизированная структура вместо открытой
	// JSONB-мапы, чтобы инварианты HITL были проверяемы статически.
	GuardrailSummary *GuardrailSummary `json:"guardrail_summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GuardrailSummary итог проверок фрода и дрейфа по конкретной заявке
type GuardrailSummary struct {
	FraudStatus      string   `json:"fraud_status,omitempty"` // "No Fraud" | "Fraud" | "Suspected"
	HITLFlag         bool     `json:"hitl_flag"`
	FraudReason      string   `json:"fraud_reason,omitempty"`
	DriftDetected    bool     `json:"drift_detected"`
	DriftMagnitude   float64  `json:"drift_magnitude,omitempty"`
	AffectedFeatures []string `json:"affected_features,omitempty"`
}

// FraudSuspected заявка с любым статусом, кроме явного "No Fraud", считается подозрительной.
// Пустая строка (guardrail еще не отработал) фродом не считается.
func (g *GuardrailSummary) FraudSuspected() bool {
	if g == nil {
		return false
	}
	return g.FraudStatus != "" && g.FraudStatus != "No Fraud"
}

// Segment ключ сегмента для сравнения denial rate с базовой линией
func (c *Claim) Segment() string {
	if c.NetworkStatus == nil {
		return ""
	}
	return *c.NetworkStatus
}

// ClaimFilter параметры выборки списка заявок (read-only, не мутирует)
type ClaimFilter struct {
	CustomerID string
	Status     ClaimStatus
	ClaimType  string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

// CanTransitionTo проверяет правила конечного автомата.
// Уход в Withdrawn — единственный разрешенный override из терминального состояния.
func (c *Claim) CanTransitionTo(next ClaimStatus) error {
	if !next.Valid() {
		return ErrValidation
	}
	if next == c.Status {
		return ErrInvalidTransition
	}
	if next == StatusWithdrawn {
		return nil // Отзыв заявки разрешен из любого состояния
	}
	if c.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	return nil
}

// Validate бизнес-проверки при приеме новой заявки
func (c *Claim) Validate() error {
	if c.ClaimID == "" {
		return ErrValidation
	}
	if c.CustomerID == "" {
		return ErrValidation
	}
	if c.ClaimAmount < 0 {
		return ErrValidation
	}
	return nil
}
