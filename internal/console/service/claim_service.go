package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/claimwise-platform/internal/alerting"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/drift"
	"github.com/xela07ax/claimwise-platform/internal/hitl"
	"github.com/xela07ax/claimwise-platform/internal/infra"
	"go.uber.org/zap"
)

// ClaimRepository описывает требования к хранилищу заявок
type ClaimRepository interface {
	CreateClaim(ctx context.Context, c *domain.Claim, actor domain.Actor) error
	GetClaim(ctx context.Context, claimID string) (*domain.Claim, error)
	ListClaims(ctx context.Context, f domain.ClaimFilter) ([]*domain.Claim, error)
	CountClaims(ctx context.Context) (int64, error)
	GetStatistics(ctx context.Context) (*domain.ClaimStatistics, error)
	UpdateGuardrail(ctx context.Context, claimID string, gs *domain.GuardrailSummary) error
	TransitionClaim(ctx context.Context, claimID string, next domain.ClaimStatus, actor domain.Actor, reason *string, approvedAmount *float64) (*domain.Claim, error)
	GetHistoryByClaim(ctx context.Context, claimID string, limit int) ([]domain.ClaimHistory, error)
	GetRecentHistory(ctx context.Context, days int, limit int) ([]domain.ClaimHistory, error)
	EnqueueClaim(ctx context.Context, claimID string) (*domain.HITLQueueEntry, error)
	GetQueueStatistics(ctx context.Context) (*domain.QueueStatistics, error)
}

// DriftProvider отдает актуальный drift-отчет (реализуется MonitoringService)
type DriftProvider interface {
	CurrentDrift() drift.Report
}

const statsCacheTTL = time.Minute

type ClaimService struct {
	repo    ClaimRepository
	gate    *hitl.Gate
	drift   DriftProvider
	rdb     *redis.Client
	sink    *alerting.Sink
	metrics *infra.Metrics
	logger  *zap.Logger
}

func NewClaimService(
	repo ClaimRepository,
	gate *hitl.Gate,
	driftProv DriftProvider,
	rdb *redis.Client,
	sink *alerting.Sink,
	metrics *infra.Metrics,
	logger *zap.Logger,
) *ClaimService {
	return &ClaimService{
		repo:    repo,
		gate:    gate,
		drift:   driftProv,
		rdb:     rdb,
		sink:    sink,
		metrics: metrics,
		logger:  logger.Named("claim-service"),
	}
}

// CreateClaim прием новой заявки. Заявка всегда стартует в Pending;
// гейт отрабатывает сразу на входе, и флагованная заявка тут же
// встает в очередь ручной проверки.
func (s *ClaimService) CreateClaim(ctx context.Context, c *domain.Claim, actor domain.Actor) (*domain.Claim, error) {
	if c.ClaimID == "" {
		// CLM-префикс, как у заявок, заведенных агентом
		c.ClaimID = "CLM-" + strings.ToUpper(uuid.New().String()[:8])
	}

	if err := s.repo.CreateClaim(ctx, c, actor); err != nil {
		s.logger.Error("failed to create claim", zap.String("claim_id", c.ClaimID), zap.Error(err))
		return nil, err
	}
	s.invalidateStatsCache(ctx)

	rep := s.drift.CurrentDrift()
	decision := s.gate.Decide(c, rep)
	hitl.Apply(c, decision, rep)

	if err := s.repo.UpdateGuardrail(ctx, c.ClaimID, c.GuardrailSummary); err != nil {
		s.logger.Error("failed to persist guardrail summary", zap.String("claim_id", c.ClaimID), zap.Error(err))
		return nil, err
	}

	if decision.Flag {
		if _, err := s.flagForReview(ctx, c, decision); err != nil {
			return nil, err
		}
	}

	s.logger.Info("claim created",
		zap.String("claim_id", c.ClaimID),
		zap.String("customer_id", c.CustomerID),
		zap.Bool("hitl_flag", decision.Flag))
	return c, nil
}

// ProposeDecision обрабатывает входящее предложение статуса (Approve/Deny/Withdraw).
// Гейт вычисляется один раз на предложение: флагованная заявка остается Pending
// и уходит ревьюеру, иначе переход коммитится напрямую.
func (s *ClaimService) ProposeDecision(
	ctx context.Context,
	claimID string,
	proposed domain.ClaimStatus,
	actor domain.Actor,
	reason *string,
	approvedAmount *float64,
) (*domain.Claim, bool, error) {
	c, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, false, err
	}

	// Сам запрос на «новый статус = текущий» отбрасываем до гейта,
	// чтобы no-op не плодил записи в очереди
	if err := c.CanTransitionTo(proposed); err != nil {
		return nil, false, fmt.Errorf("claim %s: %s -> %s: %w", claimID, c.Status, proposed, err)
	}

	// Отзыв заявки — явный override, гейтом не перехватывается
	if proposed != domain.StatusWithdrawn && !c.Status.IsTerminal() {
		rep := s.drift.CurrentDrift()
		decision := s.gate.Decide(c, rep)
		if decision.Flag {
			hitl.Apply(c, decision, rep)
			if err := s.repo.UpdateGuardrail(ctx, c.ClaimID, c.GuardrailSummary); err != nil {
				return nil, false, err
			}
			if _, err := s.flagForReview(ctx, c, decision); err != nil {
				return nil, false, err
			}
			// Заявка остается Pending до решения ревьюера
			return c, true, nil
		}
	}

	updated, err := s.repo.TransitionClaim(ctx, claimID, proposed, actor, reason, approvedAmount)
	if err != nil {
		return nil, false, err
	}
	s.metrics.TransitionsTotal.WithLabelValues(string(c.Status), string(proposed), actor.Role).Inc()
	s.invalidateStatsCache(ctx)

	s.logger.Info("claim transition committed",
		zap.String("claim_id", claimID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(proposed)),
		zap.String("actor", actor.Name))
	return updated, false, nil
}

// flagForReview ставит заявку в очередь (идемпотентно) и шлет алерт
func (s *ClaimService) flagForReview(ctx context.Context, c *domain.Claim, d hitl.Decision) (*domain.HITLQueueEntry, error) {
	entry, err := s.repo.EnqueueClaim(ctx, c.ClaimID)
	if err != nil {
		s.logger.Error("failed to enqueue claim for review", zap.String("claim_id", c.ClaimID), zap.Error(err))
		return nil, err
	}

	s.sink.Publish(domain.AlertEvent{
		ClaimID:  c.ClaimID,
		Type:     domain.AlertTypeHITLFlag,
		Severity: "warning",
		Message:  d.Reason,
	})
	s.refreshQueueDepth(ctx)
	return entry, nil
}

func (s *ClaimService) refreshQueueDepth(ctx context.Context) {
	qs, err := s.repo.GetQueueStatistics(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh queue depth gauge", zap.Error(err))
		return
	}
	s.metrics.HITLQueueDepth.Set(float64(qs.Pending))
}

func (s *ClaimService) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	return s.repo.GetClaim(ctx, claimID)
}

func (s *ClaimService) ListClaims(ctx context.Context, f domain.ClaimFilter) ([]*domain.Claim, int64, error) {
	claims, err := s.repo.ListClaims(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("service: could not fetch claims: %w", err)
	}
	total, err := s.repo.CountClaims(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("service: could not count claims: %w", err)
	}
	return claims, total, nil
}

func (s *ClaimService) GetHistory(ctx context.Context, claimID string) ([]domain.ClaimHistory, error) {
	return s.repo.GetHistoryByClaim(ctx, claimID, 100)
}

// RecentHistory лента переходов по всем заявкам за последние days дней
func (s *ClaimService) RecentHistory(ctx context.Context, days, limit int) ([]domain.ClaimHistory, error) {
	if days <= 0 {
		days = 7
	}
	return s.repo.GetRecentHistory(ctx, days, limit)
}

// GetStatistics сводка дашборда. Тяжелый аналитический запрос кэшируется
// в Redis на минуту, чтобы не нагружать Postgres при каждом обновлении UI.
func (s *ClaimService) GetStatistics(ctx context.Context) (*domain.ClaimStatistics, error) {
	if cached, err := s.rdb.Get(ctx, infra.RedisKeyClaimStats).Bytes(); err == nil {
		var stats domain.ClaimStatistics
		if json.Unmarshal(cached, &stats) == nil {
			return &stats, nil
		}
	}

	stats, err := s.repo.GetStatistics(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := s.rdb.Set(ctx, infra.RedisKeyClaimStats, data, statsCacheTTL).Err(); err != nil {
			// Кэш — оптимизация, его недоступность не ошибка запроса
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *ClaimService) invalidateStatsCache(ctx context.Context) {
	if err := s.rdb.Del(ctx, infra.RedisKeyClaimStats).Err(); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}
