package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/claimwise-platform/internal/alerting"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/drift"
	"github.com/xela07ax/claimwise-platform/internal/infra"
	"github.com/xela07ax/claimwise-platform/internal/monitoring"
	"go.uber.org/zap"
)

// MonitoringService держит in-memory снимок ленты мониторинга.
// Hot path (гейт, дашборд) читает только память; перечитывание источника
// идет фоновым циклом. Снимок может слегка отставать от источника —
// это сигнал мониторинга, а не commit-гейт, eventual consistency допустима.
type MonitoringService struct {
	source   monitoring.Source
	driftCfg drift.Config
	rdb      *redis.Client
	sink     *alerting.Sink
	metrics  *infra.Metrics
	logger   *zap.Logger

	mu          sync.RWMutex
	runs        []domain.MonitoringRun
	current     drift.Report
	lastAlerted string // run_id последнего окна, по которому уже отправлен алерт
}

func NewMonitoringService(
	source monitoring.Source,
	driftCfg drift.Config,
	rdb *redis.Client,
	sink *alerting.Sink,
	metrics *infra.Metrics,
	logger *zap.Logger,
) *MonitoringService {
	return &MonitoringService{
		source:   source,
		driftCfg: driftCfg,
		rdb:      rdb,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.Named("monitoring-service"),
	}
}

// Refresh перечитывает источник, пересчитывает drift-блоки и атомарно
// подменяет снимок. Оценка — чистая функция окна: при одинаковом входе
// повторный Refresh дает тот же отчет.
func (s *MonitoringService) Refresh(ctx context.Context) error {
	runs, err := s.source.Load(ctx)
	if err != nil {
		return err
	}

	for i := range runs {
		// Сырые сегментные наблюдения имеют приоритет над drift-блоком фида
		if len(runs[i].SegmentStats) > 0 {
			runs[i].Drift = drift.Evaluate(runs[i].SegmentStats, s.driftCfg)
		}
	}

	var latest drift.Report
	var latestID string
	if len(runs) > 0 {
		last := runs[len(runs)-1]
		latest = last.Drift
		latestID = last.RunID
	}

	s.mu.Lock()
	s.runs = runs
	s.current = latest
	alreadyAlerted := s.lastAlerted == latestID
	if !alreadyAlerted {
		s.lastAlerted = latestID
	}
	s.mu.Unlock()

	s.metrics.DriftMagnitude.Set(latest.DriftMagnitude)

	if latest.HasDrift && !alreadyAlerted {
		s.raiseDriftAlert(ctx, latestID, latest)
	}
	return nil
}

func (s *MonitoringService) raiseDriftAlert(ctx context.Context, runID string, rep drift.Report) {
	features := make([]string, 0, len(rep.DriftedFeatures))
	for _, f := range rep.DriftedFeatures {
		features = append(features, f.Name)
	}

	s.logger.Warn("DRIFT DETECTED",
		zap.String("run_id", runID),
		zap.Float64("magnitude", rep.DriftMagnitude),
		zap.Float64("threshold", rep.Threshold),
		zap.String("severity", string(rep.Severity)),
		zap.Strings("features", features))

	s.sink.Publish(domain.AlertEvent{
		RunID:    runID,
		Type:     domain.AlertTypeDrift,
		Severity: string(rep.Severity),
		Message:  "denial-rate drift detected beyond baseline threshold",
	})

	// Широковещательный сигнал: подписчики перечитают /api/monitoring/latest
	if err := s.rdb.Publish(ctx, infra.RedisChanDriftAlerts, runID).Err(); err != nil {
		s.logger.Warn("drift signal delivery failed", zap.Error(err))
	}
}

// StartRefreshLoop фоновый цикл обновления снимка до отмены контекста
func (s *MonitoringService) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("monitoring refresh failed", zap.Error(err))
			}
		}
	}
}

// CurrentDrift реализует DriftProvider для ClaimService
func (s *MonitoringService) CurrentDrift() drift.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// AllRuns все окна, старые первыми
func (s *MonitoringService) AllRuns() []domain.MonitoringRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MonitoringRun, len(s.runs))
	copy(out, s.runs)
	return out
}

// Latest самое свежее окно; ok=false, если лента пуста
func (s *MonitoringService) Latest() (domain.MonitoringRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return domain.MonitoringRun{}, false
	}
	return s.runs[len(s.runs)-1], true
}

// History последние limit окон
func (s *MonitoringService) History(limit int) []domain.MonitoringRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]domain.MonitoringRun, limit)
	copy(out, s.runs[len(s.runs)-limit:])
	return out
}
