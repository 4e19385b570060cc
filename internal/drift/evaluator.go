// Package drift вычисляет отклонение текущего распределения отказов по заявкам
// от базовой линии. Чистая функция без скрытого состояния: один и тот же вход
// всегда дает один и тот же отчет, поэтому Evaluate можно безопасно вызывать
// параллельно с любым числом переходов по заявкам.
package drift

import (
	"math"
	"sort"
)

// Severity классификация серьезности дрейфа
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	DefaultThreshold      = 0.15 // 15 процентных пунктов
	DefaultMinSampleCount = 30
)

// SegmentSample наблюдения по одному сегменту (например, по provider network)
// за окно мониторинга.
type SegmentSample struct {
	BaselineRate float64 `json:"baseline_rate"` // Доля отказов в базовой линии, 0..1
	CurrentRate  float64 `json:"current_rate"`  // Доля отказов в текущем окне, 0..1
	SampleCount  int64   `json:"sample_count"`  // Заявок сегмента в текущем окне
}

// Config параметры оценки. Zero value дополняется дефолтами в Evaluate.
type Config struct {
	// Threshold — порог магнитуды в долях (0.15 = 15 п.п.)
	Threshold float64
	// MinSampleCount — минимальный размер выборки сегмента. Сегменты с меньшим
	// числом заявок исключаются из drifted_features, даже если сырая магнитуда
	// превышает порог, чтобы не поднимать тревогу на разреженных данных.
	MinSampleCount int64
}

// Feature сегмент, чья индивидуальная магнитуда превысила порог
type Feature struct {
	Name      string  `json:"name"`
	Magnitude float64 `json:"magnitude"`
}

// Report итог оценки одного окна мониторинга. Потребляется HITL Gate
// и отдается дашборду как drift-блок monitoring run.
type Report struct {
	HasDrift        bool      `json:"has_drift"`
	DriftMagnitude  float64   `json:"drift_magnitude"` // Максимум по сегментам
	Threshold       float64   `json:"threshold"`
	DriftShare      float64   `json:"drift_share"` // Доля заявок окна в дрейфующих сегментах
	DriftedFeatures []Feature `json:"drifted_features"`
	Severity        Severity  `json:"severity"`
}

// Affected true, если сегмент входит в список дрейфующих
func (r Report) Affected(segment string) bool {
	for _, f := range r.DriftedFeatures {
		if f.Name == segment {
			return true
		}
	}
	return false
}

// Actionable предупреждение или критика — сигнал, на который реагирует гейт
func (r Report) Actionable() bool {
	return r.Severity == SeverityWarning || r.Severity == SeverityCritical
}

// Classify переводит магнитуду в уровень серьезности.
// Строгие неравенства: ровно 2x порога — еще warning, ровно порог — еще info.
func Classify(magnitude, threshold float64) Severity {
	switch {
	case magnitude > 2*threshold:
		return SeverityCritical
	case magnitude > threshold:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Evaluate сравнивает окно с базовой линией и строит отчет.
// Детерминизм: drifted_features отсортированы по убыванию магнитуды,
// при равенстве — лексикографически по имени сегмента, чтобы алерты
// были воспроизводимы между запусками.
func Evaluate(samples map[string]SegmentSample, cfg Config) Report {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinSampleCount == 0 {
		cfg.MinSampleCount = DefaultMinSampleCount
	}

	rep := Report{
		Threshold:       cfg.Threshold,
		DriftedFeatures: make([]Feature, 0),
	}

	var totalCount, driftedCount int64
	for name, s := range samples {
		mag := math.Abs(s.CurrentRate - s.BaselineRate)
		if mag > rep.DriftMagnitude {
			rep.DriftMagnitude = mag
		}
		totalCount += s.SampleCount

		if mag <= cfg.Threshold {
			continue
		}
		// Сегменты с недостаточной выборкой порог превысили, но в алерт не попадают
		if s.SampleCount < cfg.MinSampleCount {
			continue
		}
		rep.DriftedFeatures = append(rep.DriftedFeatures, Feature{Name: name, Magnitude: mag})
		driftedCount += s.SampleCount
	}

	sort.Slice(rep.DriftedFeatures, func(i, j int) bool {
		a, b := rep.DriftedFeatures[i], rep.DriftedFeatures[j]
		if a.Magnitude != b.Magnitude {
			return a.Magnitude > b.Magnitude
		}
		return a.Name < b.Name
	})

	if totalCount > 0 {
		rep.DriftShare = float64(driftedCount) / float64(totalCount)
	}

	rep.HasDrift = rep.DriftMagnitude > cfg.Threshold
	rep.Severity = Classify(rep.DriftMagnitude, cfg.Threshold)
	return rep
}
