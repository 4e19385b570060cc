package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

// CreateFeedback сохраняет сигнал о риске от пользователя дашборда
func (r *ClaimRepo) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO feedback (user_id, risk_type, severity, title, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING feedback_id, created_at`,
		f.UserID, f.RiskType, f.Severity, f.Title, f.Description,
	).Scan(&f.FeedbackID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create feedback: %w", err)
	}
	return nil
}

func (r *ClaimRepo) GetAllFeedback(ctx context.Context) ([]*domain.Feedback, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT feedback_id, user_id, risk_type, severity, title, description, created_at
		FROM feedback
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query feedback: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.Feedback, 0)
	for rows.Next() {
		var f domain.Feedback
		err := rows.Scan(&f.FeedbackID, &f.UserID, &f.RiskType, &f.Severity,
			&f.Title, &f.Description, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan feedback: %w", err)
		}
		results = append(results, &f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
