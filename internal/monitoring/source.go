// Package monitoring отвечает за получение окон мониторинга от внешнего фида:
// локального каталога JSON-файлов или HTTP-эндпоинта. Содержимое окон ядро
// не вычисляет — оно приходит снаружи, здесь только разбор, валидация и
// отказоустойчивая доставка.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xela07ax/claimwise-platform/internal/domain"
	"go.uber.org/zap"
)

// Source абстракция над источником окон мониторинга
type Source interface {
	// Load возвращает валидные окна, отсортированные по началу окна (старые первыми)
	Load(ctx context.Context) ([]domain.MonitoringRun, error)
}

// FileSource читает файлы monitoring_*.json из каталога.
type FileSource struct {
	dir    string
	logger *zap.Logger
}

func NewFileSource(dir string, logger *zap.Logger) *FileSource {
	return &FileSource{dir: dir, logger: logger.Named("monitoring-files")}
}

func (s *FileSource) Load(ctx context.Context) ([]domain.MonitoringRun, error) {
	pattern := filepath.Join(s.dir, "monitoring_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("monitoring: bad glob pattern: %w", err)
	}
	if len(files) == 0 {
		s.logger.Warn("no monitoring files found", zap.String("dir", s.dir))
		return []domain.MonitoringRun{}, nil
	}

	runs := make([]domain.MonitoringRun, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := parseRunFile(path)
		if err != nil {
			// Битый файл не роняет всю ленту — пропускаем с логом
			s.logger.Error("skipping invalid monitoring file",
				zap.String("file", filepath.Base(path)), zap.Error(err))
			continue
		}
		runs = append(runs, *run)
	}

	SortRuns(runs)
	s.logger.Info("monitoring runs loaded", zap.Int("count", len(runs)))
	return runs, nil
}

func parseRunFile(path string) (*domain.MonitoringRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	var run domain.MonitoringRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := ValidateRun(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ValidateRun проверяет обязательные поля окна
func ValidateRun(run *domain.MonitoringRun) error {
	if run.RunID == "" {
		return fmt.Errorf("missing required field: run_id")
	}
	if run.MonitoringWindow.StartTime.IsZero() {
		return fmt.Errorf("missing timestamp in monitoring_window")
	}
	if run.Status == "" {
		return fmt.Errorf("missing required field: status")
	}
	if run.Alerts == nil {
		run.Alerts = []domain.Alert{}
	}
	return nil
}

// SortRuns хронологический порядок, старые первыми
func SortRuns(runs []domain.MonitoringRun) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].MonitoringWindow.StartTime.Before(runs[j].MonitoringWindow.StartTime)
	})
}
