package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/claimwise-platform/internal/infra"
)

// ClaimRepo единая точка доступа к PostgreSQL. Методы по доменам разнесены
// по файлам: claim_repo.go, hitl_repo.go, history_repo.go, user_repo.go,
// feedback_repo.go, alert_repo.go.
type ClaimRepo struct {
	pool *pgxpool.Pool
}

// NewClaimRepo создает пул соединений по настройкам из конфига
func NewClaimRepo(ctx context.Context, cfg infra.DatabaseConfig) (*ClaimRepo, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	return &ClaimRepo{pool: pool}, nil
}

// Ping проверяет доступность базы при старте
func (r *ClaimRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *ClaimRepo) Close() {
	r.pool.Close()
}
