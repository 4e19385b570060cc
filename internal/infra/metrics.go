package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность обработки HTTP-запросов консоли
	RequestDuration *prometheus.HistogramVec

	// Переходы state machine по заявкам
	TransitionsTotal *prometheus.CounterVec

	// Saturation: глубина очереди HITL (ждут ревьюера)
	HITLQueueDepth prometheus.Gauge

	// Текущая магнитуда дрейфа из последнего окна мониторинга
	DriftMagnitude prometheus.Gauge

	// Заполненность буфера алертов (backpressure)
	AlertBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimwise_request_duration_seconds",
			Help:    "Histogram of console API request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "status"}),

		TransitionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "claimwise_claim_transitions_total",
			Help: "Total number of committed claim status transitions.",
		}, []string{"from", "to", "role"}),

		HITLQueueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "claimwise_hitl_queue_depth",
			Help: "Number of claims currently waiting for human review.",
		}),

		DriftMagnitude: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "claimwise_drift_magnitude",
			Help: "Denial-rate drift magnitude of the latest monitoring window.",
		}),

		AlertBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "claimwise_alert_buffer_utilization",
			Help: "Current number of events in the alert sink buffer.",
		}),
	}
}
