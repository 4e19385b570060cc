package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/infra"
	"go.uber.org/zap"
)

// QueueRepository описывает требования к хранилищу очереди HITL
type QueueRepository interface {
	GetPendingQueue(ctx context.Context, limit int) ([]*domain.HITLQueueEntry, error)
	GetQueueEntry(ctx context.Context, queueID int64) (*domain.HITLQueueEntry, error)
	GetQueueByClaim(ctx context.Context, claimID string) (*domain.HITLQueueEntry, error)
	AssignReviewer(ctx context.Context, queueID, userID int64) (*domain.HITLQueueEntry, error)
	CompleteReview(ctx context.Context, queueID int64, decision domain.ClaimStatus, comments *string, actor domain.Actor, approvedAmount *float64) (*domain.HITLQueueEntry, *domain.Claim, error)
	GetQueueStatistics(ctx context.Context) (*domain.QueueStatistics, error)
}

type QueueService struct {
	repo    QueueRepository
	rdb     *redis.Client
	metrics *infra.Metrics
	logger  *zap.Logger
}

func NewQueueService(repo QueueRepository, rdb *redis.Client, metrics *infra.Metrics, logger *zap.Logger) *QueueService {
	return &QueueService{
		repo:    repo,
		rdb:     rdb,
		metrics: metrics,
		logger:  logger.Named("hitl-service"),
	}
}

func (s *QueueService) PendingQueue(ctx context.Context, limit int) ([]*domain.HITLQueueEntry, error) {
	entries, err := s.repo.GetPendingQueue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: could not fetch pending queue: %w", err)
	}
	return entries, nil
}

func (s *QueueService) GetByClaim(ctx context.Context, claimID string) (*domain.HITLQueueEntry, error) {
	return s.repo.GetQueueByClaim(ctx, claimID)
}

// Assign закрепляет запись очереди за ревьюером
func (s *QueueService) Assign(ctx context.Context, queueID, userID int64) (*domain.HITLQueueEntry, error) {
	entry, err := s.repo.AssignReviewer(ctx, queueID, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("queue entry assigned",
		zap.Int64("queue_id", queueID),
		zap.Int64("reviewer", userID))
	return entry, nil
}

// SubmitReview фиксирует решение ревьюера. Закрытие записи очереди и переход
// заявки атомарны (одна транзакция в репозитории); здесь подотчетность:
// актор-ревьюер пишется в историю, решение транслируется подписчикам.
func (s *QueueService) SubmitReview(
	ctx context.Context,
	queueID int64,
	decision string,
	comments *string,
	actor domain.Actor,
	approvedAmount *float64,
) (*domain.HITLQueueEntry, *domain.Claim, error) {
	status := domain.ClaimStatus(decision)
	if status != domain.StatusApproved && status != domain.StatusDenied {
		return nil, nil, fmt.Errorf("decision must be Approved or Denied, got %q: %w", decision, domain.ErrValidation)
	}

	// Deny без суммы: approved_amount остается как был (0.00 по умолчанию)
	if status == domain.StatusApproved && approvedAmount == nil {
		return nil, nil, fmt.Errorf("approved_amount is required for approval: %w", domain.ErrValidation)
	}

	entry, claim, err := s.repo.CompleteReview(ctx, queueID, status, comments, actor, approvedAmount)
	if err != nil {
		s.logger.Error("failed to persist review decision",
			zap.Int64("queue_id", queueID),
			zap.String("reviewer", actor.Name),
			zap.Error(err))
		return nil, nil, err
	}

	s.metrics.TransitionsTotal.WithLabelValues(string(domain.StatusPending), decision, actor.Role).Inc()
	s.refreshQueueDepth(ctx)

	// Сигнал «пробуждения» для ожидающих решение по конкретной заявке.
	// Если Redis недоступен — решение уже сохранено, подписчики дочитают
	// состояние по HTTP (Fail-Safe), поэтому только предупреждение.
	chanName := infra.ReviewDecisionChannel(claim.ClaimID)
	if err := s.rdb.Publish(ctx, chanName, decision).Err(); err != nil {
		s.logger.Warn("decision saved but signal not delivered",
			zap.String("claim_id", claim.ClaimID),
			zap.Error(err))
	}

	s.logger.Info("HITL decision processed",
		zap.Int64("queue_id", queueID),
		zap.String("claim_id", claim.ClaimID),
		zap.String("reviewer", actor.Name),
		zap.String("result", decision))
	return entry, claim, nil
}

func (s *QueueService) Statistics(ctx context.Context) (*domain.QueueStatistics, error) {
	return s.repo.GetQueueStatistics(ctx)
}

func (s *QueueService) refreshQueueDepth(ctx context.Context) {
	qs, err := s.repo.GetQueueStatistics(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh queue depth gauge", zap.Error(err))
		return
	}
	s.metrics.HITLQueueDepth.Set(float64(qs.Pending))
}
