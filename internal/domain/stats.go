package domain

// ClaimStatistics сводка для дашборда (/api/claims/statistics/overview)
type ClaimStatistics struct {
	Total          int64   `json:"total"`
	Approved       int64   `json:"approved"`
	Pending        int64   `json:"pending"`
	Denied         int64   `json:"denied"`
	Withdrawn      int64   `json:"withdrawn"`
	TotalAmount    float64 `json:"total_amount"`
	ApprovedAmount float64 `json:"approved_amount"`
}

// QueueStatistics сводка по очереди HITL
type QueueStatistics struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Assigned  int64 `json:"assigned"`
}
