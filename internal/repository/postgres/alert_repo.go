package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/claimwise-platform/internal/domain"
)

// WriteAlertBatch пакетная вставка событий алертов (Bulk Insert).
// Вызывается воркером alerting.Sink по таймеру или при заполнении батча.
func (r *ClaimRepo) WriteAlertBatch(ctx context.Context, events []domain.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	const numFields = 7
	var sb strings.Builder
	vals := make([]interface{}, 0, len(events)*numFields)

	for i, e := range events {
		p := i * numFields
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7)
		vals = append(vals, e.ID, e.RunID, e.ClaimID, e.Type, e.Severity, e.Message, e.Timestamp)
	}

	query := fmt.Sprintf(
		"INSERT INTO alert_events (id, run_id, claim_id, type, severity, message, timestamp) VALUES %s",
		sb.String(),
	)

	if _, err := r.pool.Exec(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: failed to write alert batch: %w", err)
	}
	return nil
}

// GetRecentAlerts последние события для дашборда
func (r *ClaimRepo) GetRecentAlerts(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, claim_id, type, severity, message, timestamp
		FROM alert_events
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query alerts: %w", err)
	}
	defer rows.Close()

	results := make([]domain.AlertEvent, 0)
	for rows.Next() {
		var e domain.AlertEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.ClaimID, &e.Type, &e.Severity, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan alert: %w", err)
		}
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
