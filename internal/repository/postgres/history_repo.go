package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

const historyColumns = `history_id, claim_id, old_status, new_status, changed_by, role, change_reason, timestamp`

// GetHistoryByClaim возвращает журнал переходов заявки, новые сверху.
// Строки истории append-only: здесь только чтение.
func (r *ClaimRepo) GetHistoryByClaim(ctx context.Context, claimID string, limit int) ([]domain.ClaimHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM claimhistory
		WHERE claim_id = $1
		ORDER BY timestamp DESC, history_id DESC
		LIMIT $2`, historyColumns), claimID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query history: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ClaimHistory, 0)
	for rows.Next() {
		var h domain.ClaimHistory
		err := rows.Scan(&h.HistoryID, &h.ClaimID, &h.OldStatus, &h.NewStatus,
			&h.ChangedBy, &h.Role, &h.ChangeReason, &h.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan history row: %w", err)
		}
		results = append(results, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// GetRecentHistory недавние изменения по всем заявкам (лента активности)
func (r *ClaimRepo) GetRecentHistory(ctx context.Context, days int, limit int) ([]domain.ClaimHistory, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM claimhistory
		WHERE timestamp >= NOW() - make_interval(days => $1)
		ORDER BY timestamp DESC
		LIMIT $2`, historyColumns), days, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query recent history: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ClaimHistory, 0)
	for rows.Next() {
		var h domain.ClaimHistory
		err := rows.Scan(&h.HistoryID, &h.ClaimID, &h.OldStatus, &h.NewStatus,
			&h.ChangedBy, &h.Role, &h.ChangeReason, &h.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan history row: %w", err)
		}
		results = append(results, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
