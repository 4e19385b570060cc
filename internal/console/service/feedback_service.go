package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/claimwise-platform/internal/domain"
	"go.uber.org/zap"
)

// FeedbackRepository контракт хранилища обратной связи
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, f *domain.Feedback) error
	GetAllFeedback(ctx context.Context) ([]*domain.Feedback, error)
}

type FeedbackService struct {
	repo   FeedbackRepository
	logger *zap.Logger
}

func NewFeedbackService(repo FeedbackRepository, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{repo: repo, logger: logger.Named("feedback-service")}
}

func (s *FeedbackService) Submit(ctx context.Context, f *domain.Feedback) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("feedback rejected: %w", err)
	}
	if err := s.repo.CreateFeedback(ctx, f); err != nil {
		s.logger.Error("failed to create feedback", zap.Int64("user_id", f.UserID), zap.Error(err))
		return err
	}
	s.logger.Info("feedback submitted",
		zap.Int64("user_id", f.UserID),
		zap.String("risk_type", f.RiskType))
	return nil
}

func (s *FeedbackService) List(ctx context.Context) ([]*domain.Feedback, error) {
	return s.repo.GetAllFeedback(ctx)
}
