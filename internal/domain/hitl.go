package domain

import "time"

// Статусы записи очереди HITL
type QueueStatus string

const (
	QueuePending   QueueStatus = "Pending"
	QueueApproved  QueueStatus = "Approved"
	QueueDenied    QueueStatus = "Denied"
	QueueCompleted QueueStatus = "Completed"
)

// HITLQueueEntry запись очереди ручной проверки (таблица hitlqueue).
// У заявки может быть не более одной открытой (Pending) записи одновременно.
type HITLQueueEntry struct {
	QueueID          int64       `json:"queue_id"`
	ClaimID          string      `json:"claim_id"`
	AssignedTo       *int64      `json:"assigned_to,omitempty"`
	Status           QueueStatus `json:"status"`
	ReviewerComments *string     `json:"reviewer_comments,omitempty"`
	Decision         *string     `json:"decision,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	ReviewedAt       *time.Time  `json:"reviewed_at,omitempty"` // Ставится только при терминальном решении
}

// Reviewed запись закрыта и повторное решение по ней запрещено
func (e *HITLQueueEntry) Reviewed() bool {
	return e.ReviewedAt != nil || e.Status != QueuePending
}
