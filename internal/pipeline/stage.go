// Package pipeline выполняет этапы обогащения над таблицей телеметрии:
// чтение всей таблицы, вычисление всех колонок, однократная запись
package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Stage этап конвейера
type Stage string

const (
	StageAnomaly   Stage = "anomaly"
	StageHealth    Stage = "health"
	StageRootCause Stage = "rootcause"
	StageRecommend Stage = "recommend"
	StagePrompts   Stage = "prompts"
)

// CoreStages четыре этапа обогащения в порядке зависимостей
var CoreStages = []Stage{StageAnomaly, StageHealth, StageRootCause, StageRecommend}

// canonical порядок исполнения; prompts только читает решения и идет последним
var canonical = map[Stage]int{
	StageAnomaly:   0,
	StageHealth:    1,
	StageRootCause: 2,
	StageRecommend: 3,
	StagePrompts:   4,
}

// ErrUnknownStage имя этапа не распознано
var ErrUnknownStage = errors.New("unknown stage")

// ParseStage разбирает имя этапа
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := canonical[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return s, nil
}

// Order убирает повторы и упорядочивает этапы по зависимостям, поэтому
// набор этапов никогда не исполняется вне порядка
func Order(stages []Stage) ([]Stage, error) {
	seen := make(map[Stage]bool, len(stages))
	var ordered []Stage
	for _, s := range stages {
		if _, ok := canonical[s]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, s)
		}
		if !seen[s] {
			seen[s] = true
			ordered = append(ordered, s)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return canonical[ordered[i]] < canonical[ordered[j]]
	})
	return ordered, nil
}
