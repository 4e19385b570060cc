package alerting

/*
Файл sink.go реализует асинхронный приемник алерт-событий (drift/guardrail).

- Non-blocking: события уходят из hot path обработки заявок через буферизованный
  канал, задержки записи в БД не влияют на время ответа API.
- Batching: накопление в памяти и пакетная запись (Bulk Insert) в PostgreSQL
  по таймеру или при достижении лимита батча.
- Drain Pattern: при остановке сервиса канал закрывается и воркер дописывает
  остатки буфера (Final Flush) — события не теряются при перезагрузке.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/claimwise-platform/internal/domain"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются события
type StorageInterface interface {
	// WriteAlertBatch сохраняет пачку событий за один раз
	WriteAlertBatch(ctx context.Context, events []domain.AlertEvent) error
}

type Sink struct {
	ch         chan domain.AlertEvent
	repo       StorageInterface
	logger     *zap.Logger
	wg         sync.WaitGroup
	batchSize  int
	flushEvery time.Duration
	bufferFill prometheus.Gauge // Может быть nil в тестах

	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewSink(repo StorageInterface, logger *zap.Logger, bufferSize int, flushEvery time.Duration, bufferFill prometheus.Gauge) *Sink {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	return &Sink{
		ch:         make(chan domain.AlertEvent, bufferSize),
		repo:       repo,
		logger:     logger.With(zap.String("mod", "alert-sink")),
		batchSize:  100,
		flushEvery: flushEvery,
		bufferFill: bufferFill,
	}
}

func (s *Sink) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (s *Sink) Stop() {
	atomic.StoreInt32(&s.isClosed, 1)

	// Крошечная пауза, чтобы текущие Publish успели проскочить
	time.Sleep(10 * time.Millisecond)

	s.logger.Info("stopping alert sink: closing channel and flushing buffer...")
	close(s.ch)
	s.wg.Wait()
	s.logger.Info("alert sink stopped gracefully")
}

// Publish ставит событие в очередь записи. Никогда не блокирует:
// при переполнении буфера событие сбрасывается в лог (Load Shedding).
func (s *Sink) Publish(event domain.AlertEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&s.isClosed) == 1 {
		s.logger.Warn("alert event dropped: sink is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case s.ch <- event:
		if s.bufferFill != nil {
			s.bufferFill.Set(float64(len(s.ch)))
		}
	default:
		// Канал переполнен (Backpressure) — не теряем данные молча
		s.logger.Error("alert_buffer_overflow",
			zap.String("type", event.Type),
			zap.String("claim_id", event.ClaimID),
			zap.String("message", event.Message),
		)
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()

	batch := make([]domain.AlertEvent, 0, s.batchSize)
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст при остановке может быть уже закрыт
		if err := s.repo.WriteAlertBatch(context.Background(), batch); err != nil {
			s.logger.Error("alert flush failed", zap.Error(err), zap.Int("batch", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-s.ch:
			if !ok {
				flush() // Final Flush при закрытии канала
				return
			}
			batch = append(batch, event)
			if s.bufferFill != nil {
				s.bufferFill.Set(float64(len(s.ch)))
			}
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
