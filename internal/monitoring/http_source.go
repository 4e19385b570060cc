package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPSource ходит за окнами мониторинга по сети. Транзиентные сбои
// ретраятся с бэкоффом на этой границе, а не внутри чистого Evaluator'а;
// каждая выборка ограничена таймаутом и не может висеть бесконечно.
type HTTPSource struct {
	url     string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

func NewHTTPSource(url string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "monitoring-feed",
		Interval: 5 * time.Second,
		Timeout:  30 * time.Second, // Время, через которое CB попробует «закрыться»
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &HTTPSource{
		url:     url,
		client:  &http.Client{},
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		timeout: timeout,
		logger:  logger.Named("monitoring-feed"),
	}
}

type feedResponse struct {
	Runs []domain.MonitoringRun `json:"runs"`
}

func (s *HTTPSource) Load(ctx context.Context) ([]domain.MonitoringRun, error) {
	// 1. Rate Limiter
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("monitoring: rate limit wait canceled: %w", err)
	}

	// 2. Circuit Breaker + Retry с экспоненциальным бэкоффом
	result, err := s.cb.Execute(func() (interface{}, error) {
		var body []byte

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
		)
		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			var fetchErr error
			body, fetchErr = s.fetch(tCtx)
			return fetchErr
		})
		if retryErr != nil {
			return nil, retryErr
		}

		var resp feedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("monitoring: invalid feed payload: %w", err)
		}
		return resp.Runs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("monitoring: feed unavailable (retryable): %w", err)
	}

	raw := result.([]domain.MonitoringRun)
	runs := make([]domain.MonitoringRun, 0, len(raw))
	for i := range raw {
		run := raw[i]
		if err := ValidateRun(&run); err != nil {
			s.logger.Error("skipping invalid monitoring run", zap.String("run_id", run.RunID), zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}

	SortRuns(runs)
	return runs, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("monitoring: bad feed url: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitoring: feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monitoring: feed returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
