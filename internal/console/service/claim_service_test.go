package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/claimwise-platform/internal/alerting"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/drift"
	"github.com/xela07ax/claimwise-platform/internal/hitl"
	"github.com/xela07ax/claimwise-platform/internal/infra"
)

// fakeClaimRepo in-memory реализация ClaimRepository для юнит-тестов сервиса
type fakeClaimRepo struct {
	claims      map[string]*domain.Claim
	history     map[string][]domain.ClaimHistory
	queue       map[string]*domain.HITLQueueEntry // открытые записи по claim_id
	nextQueueID int64
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{
		claims:  map[string]*domain.Claim{},
		history: map[string][]domain.ClaimHistory{},
		queue:   map[string]*domain.HITLQueueEntry{},
	}
}

func (f *fakeClaimRepo) CreateClaim(_ context.Context, c *domain.Claim, actor domain.Actor) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, exists := f.claims[c.ClaimID]; exists {
		return domain.ErrValidation
	}
	c.Status = domain.StatusPending
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.claims[c.ClaimID] = c
	f.history[c.ClaimID] = append(f.history[c.ClaimID], domain.ClaimHistory{
		ClaimID:   c.ClaimID,
		OldStatus: domain.StatusNew,
		NewStatus: domain.StatusPending,
		ChangedBy: actor.Name,
		Role:      actor.Role,
	})
	return nil
}

func (f *fakeClaimRepo) GetClaim(_ context.Context, claimID string) (*domain.Claim, error) {
	c, ok := f.claims[claimID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClaimRepo) ListClaims(_ context.Context, _ domain.ClaimFilter) ([]*domain.Claim, error) {
	out := make([]*domain.Claim, 0, len(f.claims))
	for _, c := range f.claims {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClaimRepo) CountClaims(_ context.Context) (int64, error) {
	return int64(len(f.claims)), nil
}

func (f *fakeClaimRepo) GetStatistics(_ context.Context) (*domain.ClaimStatistics, error) {
	return &domain.ClaimStatistics{Total: int64(len(f.claims))}, nil
}

func (f *fakeClaimRepo) UpdateGuardrail(_ context.Context, claimID string, gs *domain.GuardrailSummary) error {
	c, ok := f.claims[claimID]
	if !ok {
		return domain.ErrNotFound
	}
	c.GuardrailSummary = gs
	return nil
}

func (f *fakeClaimRepo) TransitionClaim(_ context.Context, claimID string, next domain.ClaimStatus, actor domain.Actor, reason *string, approvedAmount *float64) (*domain.Claim, error) {
	c, ok := f.claims[claimID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := c.CanTransitionTo(next); err != nil {
		return nil, err
	}
	if next == domain.StatusApproved {
		if approvedAmount == nil || *approvedAmount < 0 || *approvedAmount > c.ClaimAmount {
			return nil, domain.ErrValidation
		}
		c.ApprovedAmount = *approvedAmount
	}
	f.history[claimID] = append(f.history[claimID], domain.ClaimHistory{
		ClaimID:   claimID,
		OldStatus: c.Status,
		NewStatus: next,
		ChangedBy: actor.Name,
		Role:      actor.Role,
	})
	c.Status = next
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

func (f *fakeClaimRepo) GetHistoryByClaim(_ context.Context, claimID string, _ int) ([]domain.ClaimHistory, error) {
	return f.history[claimID], nil
}

func (f *fakeClaimRepo) GetRecentHistory(_ context.Context, _ int, _ int) ([]domain.ClaimHistory, error) {
	out := make([]domain.ClaimHistory, 0)
	for _, h := range f.history {
		out = append(out, h...)
	}
	return out, nil
}

func (f *fakeClaimRepo) EnqueueClaim(_ context.Context, claimID string) (*domain.HITLQueueEntry, error) {
	// Идемпотентность: открытая запись на заявку может быть только одна
	if e, ok := f.queue[claimID]; ok {
		return e, nil
	}
	f.nextQueueID++
	e := &domain.HITLQueueEntry{
		QueueID:   f.nextQueueID,
		ClaimID:   claimID,
		Status:    domain.QueuePending,
		CreatedAt: time.Now(),
	}
	f.queue[claimID] = e
	return e, nil
}

func (f *fakeClaimRepo) GetQueueStatistics(_ context.Context) (*domain.QueueStatistics, error) {
	return &domain.QueueStatistics{Pending: int64(len(f.queue))}, nil
}

// fakeDrift фиксированный отчет вместо живой ленты мониторинга
type fakeDrift struct{ rep drift.Report }

func (f fakeDrift) CurrentDrift() drift.Report { return f.rep }

func warningDrift(segment string) drift.Report {
	return drift.Report{
		HasDrift:        true,
		DriftMagnitude:  0.24,
		Threshold:       0.15,
		Severity:        drift.SeverityWarning,
		DriftedFeatures: []drift.Feature{{Name: segment, Magnitude: 0.24}},
	}
}

// testRedis клиент с заведомо недоступным адресом: кэш и pub/sub
// должны деградировать мягко, не ломая бизнес-операции
func testRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
}

func newClaimService(repo *fakeClaimRepo, rep drift.Report) (*ClaimService, *alerting.Sink) {
	logger := zap.NewNop()
	sink := alerting.NewSink(noopStorage{}, logger, 64, time.Hour, nil)
	svc := NewClaimService(
		repo,
		hitl.NewGate(logger),
		fakeDrift{rep: rep},
		testRedis(),
		sink,
		infra.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	return svc, sink
}

type noopStorage struct{}

func (noopStorage) WriteAlertBatch(context.Context, []domain.AlertEvent) error { return nil }

func seg(s string) *string { return &s }

func TestCreateClaim_CleanIntake(t *testing.T) {
	repo := newFakeClaimRepo()
	svc, _ := newClaimService(repo, drift.Report{Severity: drift.SeverityInfo})

	c, err := svc.CreateClaim(context.Background(), &domain.Claim{
		CustomerID:    "CUST-1",
		ClaimAmount:   250,
		NetworkStatus: seg("In-Network"),
	}, domain.Actor{Name: "intake-bot", Role: domain.RoleAIAgent})
	require.NoError(t, err)

	assert.True(t, len(c.ClaimID) > 4 && c.ClaimID[:4] == "CLM-", "ID генерируется с префиксом")
	assert.Equal(t, domain.StatusPending, c.Status)
	require.NotNil(t, c.GuardrailSummary)
	assert.False(t, c.GuardrailSummary.HITLFlag)
	assert.Empty(t, repo.queue, "чистая заявка в очередь не встает")

	history, err := svc.GetHistory(context.Background(), c.ClaimID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusNew, history[0].OldStatus)
	assert.Equal(t, domain.StatusPending, history[0].NewStatus)
}

func TestCreateClaim_FraudGoesStraightToQueue(t *testing.T) {
	repo := newFakeClaimRepo()
	svc, _ := newClaimService(repo, drift.Report{Severity: drift.SeverityInfo})

	c, err := svc.CreateClaim(context.Background(), &domain.Claim{
		ClaimID:          "CLM-FRAUD-1",
		CustomerID:       "CUST-2",
		ClaimAmount:      900,
		GuardrailSummary: &domain.GuardrailSummary{FraudStatus: "Suspected"},
	}, domain.Actor{Name: "intake-bot", Role: domain.RoleAIAgent})
	require.NoError(t, err)

	assert.True(t, c.GuardrailSummary.HITLFlag)
	require.Contains(t, repo.queue, "CLM-FRAUD-1")
	assert.Equal(t, domain.QueuePending, repo.queue["CLM-FRAUD-1"].Status)
}

func TestProposeDecision_CommitsWhenGateIsClean(t *testing.T) {
	repo := newFakeClaimRepo()
	svc, _ := newClaimService(repo, drift.Report{Severity: drift.SeverityInfo})
	actor := domain.Actor{Name: "alice", Role: domain.RoleUser}

	_, err := svc.CreateClaim(context.Background(), &domain.Claim{
		ClaimID: "CLM-1", CustomerID: "CUST-1", ClaimAmount: 500,
	}, actor)
	require.NoError(t, err)

	amount := 450.0
	c, queued, err := svc.ProposeDecision(context.Background(), "CLM-1", domain.StatusApproved, actor, nil, &amount)
	require.NoError(t, err)

	assert.False(t, queued)
	assert.Equal(t, domain.StatusApproved, c.Status)
	assert.Equal(t, 450.0, c.ApprovedAmount)
}

func TestProposeDecision_DriftedSegmentQueuesInsteadOfCommit(t *testing.T) {
	repo := newFakeClaimRepo()
	svc, _ := newClaimService(repo, warningDrift("Out-of-Network"))
	actor := domain.Actor{Name: "alice", Role: domain.RoleUser}

	_, err := svc.CreateClaim(context.Background(), &domain.Claim{
		ClaimID: "CLM-2", CustomerID: "CUST-1", ClaimAmount: 500,
		NetworkStatus: seg("Out-of-Network"),
	}, actor)
	require.NoError(t, err)
	require.Contains(t, repo.queue, "CLM-2", "заявка флагуется уже на приеме")
	firstQueueID := repo.queue["CLM-2"].QueueID

	amount := 500.0
	c, queued, err := svc.ProposeDecision(context.Background(), "CLM-2", domain.StatusApproved, actor, nil, &amount)
	require.NoError(t, err)

	assert.True(t, queued)
	assert.Equal(t, domain.StatusPending, c.Status, "заявка остается Pending до ревью")
	assert.True(t, c.GuardrailSummary.HITLFlag)
	assert.Contains(t, c.GuardrailSummary.AffectedFeatures, "Out-of-Network")

	// Повторное предложение не плодит вторую открытую запись
	_, queued, err = svc.ProposeDecision(context.Background(), "CLM-2", domain.StatusApproved, actor, nil, &amount)
	require.NoError(t, err)
	assert.True(t, queued)
	require.Len(t, repo.queue, 1)
	assert.Equal(t, firstQueueID, repo.queue["CLM-2"].QueueID)
}

func TestProposeDecision_TerminalIsSticky(t *testing.T) {
	repo := newFakeClaimRepo()
	svc, _ := newClaimService(repo, drift.Report{Severity: drift.SeverityInfo})
	actor := domain.Actor{Name: "alice", Role: domain.RoleUser}

	_, err := svc.CreateClaim(context.Background(), &domain.Claim{
		ClaimID: "CLM-3", CustomerID: "CUST-1", ClaimAmount: 100,
	}, actor)
	require.NoError(t, err)

	_, _, err = svc.ProposeDecision(context.Background(), "CLM-3", domain.StatusDenied, actor, nil, nil)
	require.NoError(t, err)

	_, _, err = svc.ProposeDecision(context.Background(), "CLM-3", domain.StatusApproved, actor, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProposeDecision_WithdrawBypassesGateAndTerminal(t *testing.T) {
	repo := newFakeClaimRepo()
	// Дрейф в сегменте заявки: обычное решение ушло бы в очередь
	svc, _ := newClaimService(repo, warningDrift("Out-of-Network"))
	actor := domain.Actor{Name: "alice", Role: domain.RoleUser}

	_, err := svc.CreateClaim(context.Background(), &domain.Claim{
		ClaimID: "CLM-4", CustomerID: "CUST-1", ClaimAmount: 100,
		NetworkStatus: seg("In-Network"),
	}, actor)
	require.NoError(t, err)

	amount := 100.0
	_, _, err = svc.ProposeDecision(context.Background(), "CLM-4", domain.StatusApproved, actor, nil, &amount)
	require.NoError(t, err)

	// Отзыв проходит даже из терминального Approved и мимо гейта
	c, queued, err := svc.ProposeDecision(context.Background(), "CLM-4", domain.StatusWithdrawn, actor, nil, nil)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, domain.StatusWithdrawn, c.Status)
}

func TestProposeDecision_ApprovedAmountBounds(t *testing.T) {
	repo := newFakeClaimRepo()
	svc, _ := newClaimService(repo, drift.Report{Severity: drift.SeverityInfo})
	actor := domain.Actor{Name: "alice", Role: domain.RoleUser}

	_, err := svc.CreateClaim(context.Background(), &domain.Claim{
		ClaimID: "CLM-5", CustomerID: "CUST-1", ClaimAmount: 300,
	}, actor)
	require.NoError(t, err)

	over := 300.01
	_, _, err = svc.ProposeDecision(context.Background(), "CLM-5", domain.StatusApproved, actor, nil, &over)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = svc.ProposeDecision(context.Background(), "CLM-5", domain.StatusApproved, actor, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	full := 300.0
	c, _, err := svc.ProposeDecision(context.Background(), "CLM-5", domain.StatusApproved, actor, nil, &full)
	require.NoError(t, err)
	assert.Equal(t, 300.0, c.ApprovedAmount)
}

func TestProposeDecision_UnknownClaim(t *testing.T) {
	svc, _ := newClaimService(newFakeClaimRepo(), drift.Report{})

	_, _, err := svc.ProposeDecision(context.Background(), "CLM-MISSING", domain.StatusApproved,
		domain.Actor{Name: "alice", Role: domain.RoleUser}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
