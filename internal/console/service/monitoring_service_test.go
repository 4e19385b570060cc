package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/claimwise-platform/internal/alerting"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/drift"
	"github.com/xela07ax/claimwise-platform/internal/infra"
)

type fakeSource struct {
	runs []domain.MonitoringRun
	err  error
}

func (f *fakeSource) Load(context.Context) ([]domain.MonitoringRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.runs, nil
}

type recordingStorage struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (r *recordingStorage) WriteAlertBatch(_ context.Context, events []domain.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingStorage) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func monitoringRun(runID string, start time.Time, segments map[string]drift.SegmentSample) domain.MonitoringRun {
	return domain.MonitoringRun{
		RunID:            runID,
		MonitoringWindow: domain.MonitoringWindow{StartTime: start},
		SegmentStats:     segments,
		Status:           "completed",
	}
}

func newMonitoringService(src *fakeSource, storage alerting.StorageInterface) (*MonitoringService, *alerting.Sink) {
	logger := zap.NewNop()
	sink := alerting.NewSink(storage, logger, 64, 10*time.Millisecond, nil)
	svc := NewMonitoringService(
		src,
		drift.Config{Threshold: 0.15, MinSampleCount: 30},
		testRedis(),
		sink,
		infra.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	return svc, sink
}

func TestRefresh_RecomputesDriftFromSegmentStats(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{runs: []domain.MonitoringRun{
		monitoringRun("run-1", base, nil),
		monitoringRun("run-2", base.Add(24*time.Hour), map[string]drift.SegmentSample{
			"Out-of-Network": {BaselineRate: 0.18, CurrentRate: 0.42, SampleCount: 120},
		}),
	}}
	svc, _ := newMonitoringService(src, &recordingStorage{})

	require.NoError(t, svc.Refresh(context.Background()))

	rep := svc.CurrentDrift()
	assert.True(t, rep.HasDrift)
	assert.InDelta(t, 0.24, rep.DriftMagnitude, 1e-9)
	assert.Equal(t, drift.SeverityWarning, rep.Severity)

	latest, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, "run-2", latest.RunID)
	assert.True(t, latest.Drift.HasDrift)

	assert.Len(t, svc.AllRuns(), 2)
	assert.Len(t, svc.History(1), 1)
	assert.Equal(t, "run-2", svc.History(1)[0].RunID)
}

func TestRefresh_AlertsOncePerRun(t *testing.T) {
	storage := &recordingStorage{}
	src := &fakeSource{runs: []domain.MonitoringRun{
		monitoringRun("run-1", time.Now(), map[string]drift.SegmentSample{
			"Out-of-Network": {BaselineRate: 0.10, CurrentRate: 0.50, SampleCount: 200},
		}),
	}}
	svc, sink := newMonitoringService(src, storage)
	sink.Start()

	// Тот же run_id трижды — алерт через sink уходит один раз
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Refresh(context.Background()))
	}
	sink.Stop()

	assert.Equal(t, 1, storage.count())
}

func TestRefresh_SourceFailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{runs: []domain.MonitoringRun{
		monitoringRun("run-1", time.Now(), map[string]drift.SegmentSample{
			"Out-of-Network": {BaselineRate: 0.10, CurrentRate: 0.40, SampleCount: 100},
		}),
	}}
	svc, _ := newMonitoringService(src, &recordingStorage{})
	require.NoError(t, svc.Refresh(context.Background()))
	require.True(t, svc.CurrentDrift().HasDrift)

	// Источник упал: ошибка наверх, но старый снимок продолжает работать
	src.err = errors.New("feed unavailable")
	assert.Error(t, svc.Refresh(context.Background()))
	assert.True(t, svc.CurrentDrift().HasDrift)
	_, ok := svc.Latest()
	assert.True(t, ok)
}

func TestLatest_EmptyFeed(t *testing.T) {
	svc, _ := newMonitoringService(&fakeSource{}, &recordingStorage{})
	require.NoError(t, svc.Refresh(context.Background()))

	_, ok := svc.Latest()
	assert.False(t, ok)
	assert.Empty(t, svc.History(5))
	assert.False(t, svc.CurrentDrift().HasDrift)
}
