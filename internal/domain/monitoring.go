package domain

import (
	"encoding/json"
	"time"

	"github.com/xela07ax/claimwise-platform/internal/drift"
)

// Известные метрики мониторингового фида. Закрытый enum вместо духовой
// string-мапы: неизвестные имена не теряются, а складываются в Unknown
// (forward compatibility с новыми версиями фида).
type MetricName string

const (
	MetricDenialRate       MetricName = "denial_rate"
	MetricApprovalRate     MetricName = "approval_rate"
	MetricAvgClaimAmount   MetricName = "avg_claim_amount"
	MetricAutoDecisionRate MetricName = "auto_decision_rate"
	MetricHITLRate         MetricName = "hitl_rate"
	MetricFraudRate        MetricName = "fraud_rate"
	MetricClaimsProcessed  MetricName = "claims_processed"
)

func (m MetricName) Known() bool {
	switch m {
	case MetricDenialRate, MetricApprovalRate, MetricAvgClaimAmount,
		MetricAutoDecisionRate, MetricHITLRate, MetricFraudRate, MetricClaimsProcessed:
		return true
	}
	return false
}

// MetricSet типизированные значения известных метрик + сырой fallback
type MetricSet struct {
	Known   map[MetricName]float64
	Unknown map[string]json.RawMessage
}

func (ms *MetricSet) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ms.Known = make(map[MetricName]float64, len(raw))
	ms.Unknown = make(map[string]json.RawMessage)

	for k, v := range raw {
		name := MetricName(k)
		var val float64
		// Не-числовые значения известных имен тоже уходят в Unknown,
		// чтобы кривой фид не ронял разбор всего окна
		if name.Known() && json.Unmarshal(v, &val) == nil {
			ms.Known[name] = val
			continue
		}
		ms.Unknown[k] = v
	}
	return nil
}

func (ms MetricSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(ms.Known)+len(ms.Unknown))
	for k, v := range ms.Known {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[string(k)] = b
	}
	for k, v := range ms.Unknown {
		out[k] = v
	}
	return json.Marshal(out)
}

// MonitoringWindow границы окна наблюдения
type MonitoringWindow struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// Alert событие мониторинга для дашборда
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// MonitoringRun один прогон мониторинга (элемент ленты /api/monitoring/all).
// SegmentStats — сырые наблюдения по сегментам; когда они присутствуют,
// drift-блок пересчитывается Evaluator'ом, иначе используется как есть.
type MonitoringRun struct {
	RunID            string                         `json:"run_id"`
	MonitoringWindow MonitoringWindow               `json:"monitoring_window"`
	Metrics          MetricSet                      `json:"metrics"`
	Drift            drift.Report                   `json:"drift"`
	SegmentStats     map[string]drift.SegmentSample `json:"segment_stats,omitempty"`
	DataQuality      json.RawMessage                `json:"data_quality,omitempty"`
	Alerts           []Alert                        `json:"alerts"`
	Status           string                         `json:"status"`
}
