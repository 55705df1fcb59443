// Package analytics реализует детекцию аномалий телеметрии
// Статистическая часть: лес изоляции по всей пачке снимков с порогом по доле загрязнения
// Поведенческая часть: скачки задержки и джиттера относительно предыдущего снимка устройства
package analytics

import (
	"errors"
	"fmt"
	"sort"

	"netpulse/internal/models"
)

const (
	// DefaultContamination ожидаемая доля выбросов в пачке
	DefaultContamination = 0.15
	// DefaultSeed seed леса изоляции
	DefaultSeed = 42
	// DefaultTrees количество деревьев
	DefaultTrees = 150
	// DefaultSampleSize размер подвыборки на дерево
	DefaultSampleSize = 256
	// DefaultLatencyDeltaMs порог |Δlatency_ms| поведенческой аномалии
	DefaultLatencyDeltaMs = 30.0
	// DefaultJitterDeltaMs порог |Δjitter_ms| поведенческой аномалии
	DefaultJitterDeltaMs = 15.0
)

// ErrInvalidSnapshot снимок содержит нечисловой или недопустимый признак
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Config параметры детектора
type Config struct {
	Contamination  float64
	Seed           int64
	Trees          int
	SampleSize     int
	LatencyDeltaMs float64
	JitterDeltaMs  float64
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Contamination:  DefaultContamination,
		Seed:           DefaultSeed,
		Trees:          DefaultTrees,
		SampleSize:     DefaultSampleSize,
		LatencyDeltaMs: DefaultLatencyDeltaMs,
		JitterDeltaMs:  DefaultJitterDeltaMs,
	}
}

// Validate проверяет параметры
func (c Config) Validate() error {
	switch {
	case c.Contamination <= 0 || c.Contamination > 0.5:
		return fmt.Errorf("contamination must be in (0, 0.5], got %g", c.Contamination)
	case c.Trees < 1:
		return fmt.Errorf("trees must be >= 1, got %d", c.Trees)
	case c.SampleSize < 2:
		return fmt.Errorf("sample size must be >= 2, got %d", c.SampleSize)
	case c.LatencyDeltaMs < 0 || c.JitterDeltaMs < 0:
		return fmt.Errorf("delta thresholds must be >= 0")
	}
	return nil
}

// Result результат детекции для одного снимка
type Result struct {
	Score        float64
	Statistical  bool
	Behavioral   bool
	Anomaly      bool
	LatencyDelta float64
	JitterDelta  float64
}

// Detector детектор аномалий
type Detector struct {
	cfg Config
}

// NewDetector создает детектор
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Config возвращает параметры детектора
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect размечает каждый снимок. Лес обучается на всей пачке, поэтому результат
// зависит от состава пачки, но не от порядка запуска: seed фиксирован
func (d *Detector) Detect(snaps []models.MetricSnapshot) ([]Result, error) {
	features := make([][]float64, len(snaps))
	for i, s := range snaps {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", ErrInvalidSnapshot, i, s.Device, err)
		}
		features[i] = s.Features()
	}

	results := make([]Result, len(snaps))
	if len(snaps) == 0 {
		return results, nil
	}

	forest := NewIsolationForest(d.cfg.Trees, d.cfg.SampleSize, d.cfg.Seed)
	forest.Fit(features)
	scores := forest.ScoreAll(features)

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := Percentile(sorted, 1-d.cfg.Contamination)

	deltas := BehavioralDeltas(snaps, d.cfg.LatencyDeltaMs, d.cfg.JitterDeltaMs)

	for i := range snaps {
		statistical := scores[i] > threshold
		results[i] = Result{
			Score:        scores[i],
			Statistical:  statistical,
			Behavioral:   deltas[i].Anomalous,
			Anomaly:      statistical || deltas[i].Anomalous,
			LatencyDelta: deltas[i].Latency,
			JitterDelta:  deltas[i].Jitter,
		}
	}

	return results, nil
}

// Counts количество статистических, поведенческих и итоговых аномалий
func Counts(results []Result) (statistical, behavioral, combined int) {
	for _, r := range results {
		if r.Statistical {
			statistical++
		}
		if r.Behavioral {
			behavioral++
		}
		if r.Anomaly {
			combined++
		}
	}
	return statistical, behavioral, combined
}
