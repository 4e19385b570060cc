package postgres

/*
Файл hitl_repo.go содержит операции очереди Human-in-the-loop.
Инвариант «не более одной открытой записи на claim_id» обеспечивается
частичным уникальным индексом hitlqueue_open_claim_idx
(UNIQUE (claim_id) WHERE status = 'Pending') — повторный флаг уже
стоящей в очереди заявки является no-op.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/claimwise-platform/internal/domain"
)

const queueColumns = `queue_id, claim_id, assigned_to, status, reviewer_comments, decision, created_at, reviewed_at`

func scanQueueEntry(row pgx.Row) (*domain.HITLQueueEntry, error) {
	var e domain.HITLQueueEntry
	err := row.Scan(&e.QueueID, &e.ClaimID, &e.AssignedTo, &e.Status,
		&e.ReviewerComments, &e.Decision, &e.CreatedAt, &e.ReviewedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EnqueueClaim ставит заявку в очередь ручной проверки (идемпотентно).
// Возвращает открытую запись — свежесозданную или уже существовавшую.
func (r *ClaimRepo) EnqueueClaim(ctx context.Context, claimID string) (*domain.HITLQueueEntry, error) {
	// ON CONFLICT по частичному индексу делает повторную постановку no-op
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hitlqueue (claim_id, status)
		VALUES ($1, 'Pending')
		ON CONFLICT (claim_id) WHERE status = 'Pending' DO NOTHING`, claimID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to enqueue claim %s: %w", claimID, err)
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM hitlqueue
		WHERE claim_id = $1 AND status = 'Pending'`, queueColumns), claimID)
	entry, err := scanQueueEntry(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read queue entry: %w", err)
	}
	return entry, nil
}

// GetPendingQueue открытые записи, старые первыми (FIFO для ревьюеров)
func (r *ClaimRepo) GetPendingQueue(ctx context.Context, limit int) ([]*domain.HITLQueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM hitlqueue
		WHERE status = 'Pending'
		ORDER BY created_at ASC
		LIMIT $1`, queueColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query pending queue: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.HITLQueueEntry, 0)
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan queue entry: %w", err)
		}
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// GetQueueEntry запись по queue_id
func (r *ClaimRepo) GetQueueEntry(ctx context.Context, queueID int64) (*domain.HITLQueueEntry, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM hitlqueue WHERE queue_id = $1`, queueColumns), queueID)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("queue entry %d: %w", queueID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to get queue entry: %w", err)
	}
	return entry, nil
}

// GetQueueByClaim последняя запись очереди по заявке
func (r *ClaimRepo) GetQueueByClaim(ctx context.Context, claimID string) (*domain.HITLQueueEntry, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM hitlqueue
		WHERE claim_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, queueColumns), claimID)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("hitl record for claim %s: %w", claimID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to get queue entry by claim: %w", err)
	}
	return entry, nil
}

// AssignReviewer закрепляет запись за ревьюером
func (r *ClaimRepo) AssignReviewer(ctx context.Context, queueID, userID int64) (*domain.HITLQueueEntry, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE hitlqueue SET assigned_to = $1
		WHERE queue_id = $2 AND status = 'Pending'
		RETURNING %s`, queueColumns), userID, queueID)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо queue_id неверный, либо решение уже принято
			return nil, fmt.Errorf("open queue entry %d: %w", queueID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to assign reviewer: %w", err)
	}
	return entry, nil
}

// CompleteReview атомарно закрывает цикл HITL: фиксирует решение ревьюера
// и переводит заявку в решенный статус с парной строкой истории.
// Либо коммитятся оба изменения, либо ни одного.
func (r *ClaimRepo) CompleteReview(
	ctx context.Context,
	queueID int64,
	decision domain.ClaimStatus,
	comments *string,
	actor domain.Actor,
	approvedAmount *float64,
) (*domain.HITLQueueEntry, *domain.Claim, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем запись очереди и проверяем, что решение еще не принято
	row := tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM hitlqueue WHERE queue_id = $1 FOR UPDATE`, queueColumns), queueID)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("queue entry %d: %w", queueID, domain.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("postgres: failed to lock queue entry: %w", err)
	}
	if entry.Reviewed() {
		return nil, nil, fmt.Errorf("queue entry %d: %w", queueID, domain.ErrInvalidState)
	}

	reason := comments
	if reason == nil {
		def := fmt.Sprintf("Review completed with decision: %s", decision)
		reason = &def
	}

	// Переход заявки в той же транзакции (включая блокировку строки заявки)
	claim, err := r.transitionLocked(ctx, tx, entry.ClaimID, decision, actor, reason, approvedAmount)
	if err != nil {
		return nil, nil, err
	}

	row = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE hitlqueue
		SET status = $1, decision = $2, reviewer_comments = $3, reviewed_at = NOW()
		WHERE queue_id = $4
		RETURNING %s`, queueColumns),
		domain.QueueStatus(decision), string(decision), comments, queueID)
	entry, err = scanQueueEntry(row)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: failed to close queue entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("postgres: commit failed: %w", err)
	}
	return entry, claim, nil
}

// GetQueueStatistics сводка по очереди для дашборда
func (r *ClaimRepo) GetQueueStatistics(ctx context.Context) (*domain.QueueStatistics, error) {
	s := &domain.QueueStatistics{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status <> 'Pending'),
			COUNT(*) FILTER (WHERE assigned_to IS NOT NULL)
		FROM hitlqueue`).Scan(&s.Total, &s.Pending, &s.Completed, &s.Assigned)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to aggregate queue statistics: %w", err)
	}
	return s, nil
}
