package domain

import "time"

// Feedback жалоба/сигнал о риске от пользователя дашборда (таблица feedback)
type Feedback struct {
	FeedbackID  int64     `json:"feedback_id"`
	UserID      int64     `json:"user_id"`
	RiskType    string    `json:"risk_type"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (f *Feedback) Validate() error {
	if f.UserID == 0 || f.RiskType == "" || f.Title == "" {
		return ErrValidation
	}
	return nil
}
