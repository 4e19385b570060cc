package postgres

/*
Файл claim_repo.go содержит канонические операции над заявками (Claim Store).
Дисциплина single-writer-per-claim: любая мутация по claim_id идет в одной
транзакции с блокировкой строки (SELECT ... FOR UPDATE), охватывающей
UPDATE заявки и парный INSERT в claimhistory. Читатель никогда не увидит
заявку, чей статус обновлен без соответствующей строки истории.
*/

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xela07ax/claimwise-platform/internal/domain"
)

const claimColumns = `claim_id, claim_name, customer_id, policy_id, claim_type, network_status,
	date_of_service, claim_amount, approved_amount, claim_status, error_type, ai_reasoning,
	payment_status, guardrail_summary, created_at, updated_at`

func scanClaim(row pgx.Row) (*domain.Claim, error) {
	var c domain.Claim
	err := row.Scan(
		&c.ClaimID, &c.ClaimName, &c.CustomerID, &c.PolicyID, &c.ClaimType, &c.NetworkStatus,
		&c.DateOfService, &c.ClaimAmount, &c.ApprovedAmount, &c.Status, &c.ErrorType, &c.AIReasoning,
		&c.PaymentStatus, &c.GuardrailSummary, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClaim принимает новую заявку: статус Pending и история New -> Pending
// пишутся одной транзакцией.
func (r *ClaimRepo) CreateClaim(ctx context.Context, c *domain.Claim, actor domain.Actor) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("claim %s rejected: %w", c.ClaimID, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	c.Status = domain.StatusPending
	if c.PaymentStatus == "" {
		c.PaymentStatus = "Pending"
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO proposedclaim (claim_id, claim_name, customer_id, policy_id, claim_type,
			network_status, date_of_service, claim_amount, approved_amount, claim_status,
			error_type, ai_reasoning, payment_status, guardrail_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		c.ClaimID, c.ClaimName, c.CustomerID, c.PolicyID, c.ClaimType,
		c.NetworkStatus, c.DateOfService, c.ClaimAmount, c.ApprovedAmount, c.Status,
		c.ErrorType, c.AIReasoning, c.PaymentStatus, c.GuardrailSummary,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Повторный прием того же claim_id — ошибка клиента, не сбой базы
			return fmt.Errorf("claim %s already exists: %w", c.ClaimID, domain.ErrValidation)
		}
		return fmt.Errorf("postgres: failed to insert claim: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO claimhistory (claim_id, old_status, new_status, changed_by, role, change_reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ClaimID, domain.StatusNew, domain.StatusPending, actor.Name, actor.Role, "Claim intake",
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert intake history: %w", err)
	}

	return tx.Commit(ctx)
}

// GetClaim читает заявку по ID
func (r *ClaimRepo) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM proposedclaim WHERE claim_id = $1`, claimColumns), claimID)

	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("claim %s: %w", claimID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to get claim: %w", err)
	}
	return c, nil
}

// ListClaims фильтрация и выборка заявок, read-only
func (r *ClaimRepo) ListClaims(ctx context.Context, f domain.ClaimFilter) ([]*domain.Claim, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("claim_status = $%d", f.Status)
	}
	if f.ClaimType != "" {
		add("claim_type = $%d", f.ClaimType)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}

	query := fmt.Sprintf(`SELECT %s FROM proposedclaim`, claimColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query claims: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan claim: %w", err)
		}
		results = append(results, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// CountClaims общее число заявок (для пагинации списка)
func (r *ClaimRepo) CountClaims(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM proposedclaim`).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres: failed to count claims: %w", err)
	}
	return total, nil
}

// GetStatistics агрегирует сводку дашборда одним проходом
func (r *ClaimRepo) GetStatistics(ctx context.Context) (*domain.ClaimStatistics, error) {
	s := &domain.ClaimStatistics{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE claim_status = 'Approved'),
			COUNT(*) FILTER (WHERE claim_status = 'Pending'),
			COUNT(*) FILTER (WHERE claim_status = 'Denied'),
			COUNT(*) FILTER (WHERE claim_status = 'Withdrawn'),
			COALESCE(SUM(claim_amount), 0),
			COALESCE(SUM(approved_amount), 0)
		FROM proposedclaim`).Scan(
		&s.Total, &s.Approved, &s.Pending, &s.Denied, &s.Withdrawn,
		&s.TotalAmount, &s.ApprovedAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to aggregate statistics: %w", err)
	}
	return s, nil
}

// UpdateGuardrail сохраняет итог guardrail-проверок (hitl_flag, drift, fraud)
func (r *ClaimRepo) UpdateGuardrail(ctx context.Context, claimID string, gs *domain.GuardrailSummary) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE proposedclaim SET guardrail_summary = $1, updated_at = NOW() WHERE claim_id = $2`,
		gs, claimID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update guardrail summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s: %w", claimID, domain.ErrNotFound)
	}
	return nil
}

// TransitionClaim выполняет переход state machine с парной записью истории.
func (r *ClaimRepo) TransitionClaim(
	ctx context.Context,
	claimID string,
	next domain.ClaimStatus,
	actor domain.Actor,
	reason *string,
	approvedAmount *float64,
) (*domain.Claim, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := r.transitionLocked(ctx, tx, claimID, next, actor, reason, approvedAmount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit failed: %w", err)
	}
	return c, nil
}

// transitionLocked — общее ядро перехода, вызывается внутри открытой транзакции
// (из TransitionClaim и из CompleteReview). Блокирует строку заявки,
// валидирует автомат, пишет UPDATE + строку истории.
func (r *ClaimRepo) transitionLocked(
	ctx context.Context,
	tx pgx.Tx,
	claimID string,
	next domain.ClaimStatus,
	actor domain.Actor,
	reason *string,
	approvedAmount *float64,
) (*domain.Claim, error) {
	row := tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM proposedclaim WHERE claim_id = $1 FOR UPDATE`, claimColumns), claimID)

	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("claim %s: %w", claimID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to lock claim: %w", err)
	}

	if err := c.CanTransitionTo(next); err != nil {
		return nil, fmt.Errorf("claim %s: %s -> %s: %w", claimID, c.Status, next, err)
	}

	oldStatus := c.Status
	if next == domain.StatusApproved {
		if approvedAmount == nil {
			return nil, fmt.Errorf("claim %s: approved_amount is required for approval: %w", claimID, domain.ErrValidation)
		}
		if *approvedAmount < 0 || *approvedAmount > c.ClaimAmount {
			return nil, fmt.Errorf("claim %s: approved_amount %.2f out of range [0, %.2f]: %w",
				claimID, *approvedAmount, c.ClaimAmount, domain.ErrValidation)
		}
		c.ApprovedAmount = *approvedAmount
	}
	c.Status = next

	err = tx.QueryRow(ctx, `
		UPDATE proposedclaim
		SET claim_status = $1, approved_amount = $2, updated_at = NOW()
		WHERE claim_id = $3
		RETURNING updated_at`,
		c.Status, c.ApprovedAmount, claimID).Scan(&c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to update claim status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO claimhistory (claim_id, old_status, new_status, changed_by, role, change_reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		claimID, oldStatus, next, actor.Name, actor.Role, reason)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to insert history row: %w", err)
	}

	return c, nil
}
