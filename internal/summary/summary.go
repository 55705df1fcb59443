// Package summary читает обогащенную таблицу так, как ее читает слой визуализации:
// отсутствующие производные колонки заменяются нейтральными значениями
package summary

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"netpulse/internal/health"
	"netpulse/internal/models"
	"netpulse/internal/table"
)

// Нейтральные значения для колонок, которые конвейер еще не записал
const (
	NeutralHealthScore = 100
	NeutralConfidence  = 0.0
)

// ErrNotEnriched в таблице нет колонки health_status
var ErrNotEnriched = errors.New("health_status column not found")

// Skipped строка, которую не удалось декодировать
type Skipped struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Records декодирует таблицу в обогащенные записи с нейтральными значениями по умолчанию.
// Строки с ошибками разбора или недопустимыми значениями пропускаются и
// возвращаются в skipped; ошибка только при отсутствии входных колонок
func Records(t *table.Table) (records []models.EnrichedRecord, skipped []Skipped, err error) {
	if err := t.CheckSchema(); err != nil {
		return nil, nil, err
	}

	records = make([]models.EnrichedRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		rec, err := record(t, i)
		if err != nil {
			skipped = append(skipped, Skipped{Line: i + 2, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// record декодирует одну строку вместе с производными ячейками
func record(t *table.Table, i int) (models.EnrichedRecord, error) {
	s, err := t.Snapshot(i)
	if err != nil {
		return models.EnrichedRecord{}, err
	}

	cell := func(name string) string {
		v, _ := t.Cell(i, name)
		return v
	}
	number := func(name string, def float64) (float64, error) {
		v, err := table.ParseFloat(cell(name), def)
		if err != nil {
			return 0, fmt.Errorf("%w: line %d column %s: %v", table.ErrParse, i+2, name, err)
		}
		return v, nil
	}
	flag := func(name string) (bool, error) {
		v, err := table.ParseBool(cell(name), false)
		if err != nil {
			return false, fmt.Errorf("%w: line %d column %s: %v", table.ErrParse, i+2, name, err)
		}
		return v, nil
	}

	rec := models.EnrichedRecord{
		MetricSnapshot: s,
		RootCause:      cell(models.ColRootCause),
		Recommendation: cell(models.ColRecommendation),
	}
	score, err := number(models.ColHealthScore, NeutralHealthScore)
	if err != nil {
		return rec, err
	}
	rec.HealthScore = int(score)
	for _, f := range []struct {
		name string
		def  float64
		dst  *float64
	}{
		{models.ColMLScore, 0, &rec.AnomalyScore},
		{models.ColRootCauseConfidence, NeutralConfidence, &rec.RootCauseConfidence},
		{models.ColLatencyDelta, 0, &rec.LatencyDelta},
		{models.ColJitterDelta, 0, &rec.JitterDelta},
	} {
		if *f.dst, err = number(f.name, f.def); err != nil {
			return rec, err
		}
	}
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{models.ColMLAnomaly, &rec.MLAnomaly},
		{models.ColStatisticalAnomaly, &rec.StatisticalAnomaly},
		{models.ColBehavioralAnomaly, &rec.BehavioralAnomaly},
	} {
		if *f.dst, err = flag(f.name); err != nil {
			return rec, err
		}
	}

	status := cell(models.ColHealthStatus)
	if status == "" {
		status = string(health.StatusFor(rec.HealthScore))
	}
	rec.HealthStatus = models.HealthStatus(status)
	return rec, nil
}

// Summarize считает агрегаты панели: critical/degraded/healthy по health_score
// (нет колонки: 100), прогноз нарушения SLA по breach_pred (нет колонки: 0)
func Summarize(t *table.Table, now time.Time) (models.KPISummary, error) {
	kpi := models.KPISummary{Total: t.Len(), GeneratedAt: now}

	scores, _, err := t.Ints(models.ColHealthScore, NeutralHealthScore)
	if err != nil {
		return kpi, err
	}
	breach, _, err := t.Bools(models.ColBreachPrediction, false)
	if err != nil {
		return kpi, err
	}
	anomalies, _, err := t.Bools(models.ColMLAnomaly, false)
	if err != nil {
		return kpi, err
	}

	for i, score := range scores {
		switch health.StatusFor(score) {
		case models.StatusCritical:
			kpi.Critical++
		case models.StatusDegraded:
			kpi.Degraded++
		default:
			kpi.Healthy++
		}
		if breach[i] {
			kpi.PredictedBreach++
		}
		if anomalies[i] {
			kpi.Anomalies++
		}
	}
	return kpi, nil
}

// Devices список устройств в порядке сортировки
func Devices(records []models.EnrichedRecord) []string {
	seen := make(map[string]struct{})
	var devices []string
	for _, r := range records {
		if _, ok := seen[r.Device]; !ok {
			seen[r.Device] = struct{}{}
			devices = append(devices, r.Device)
		}
	}
	sort.Strings(devices)
	return devices
}

// Series временной ряд устройства по возрастанию времени
func Series(records []models.EnrichedRecord, device string) []models.EnrichedRecord {
	var out []models.EnrichedRecord
	for _, r := range records {
		if r.Device == device {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Points сокращенное представление ряда для графиков
func Points(records []models.EnrichedRecord) []models.SeriesPoint {
	points := make([]models.SeriesPoint, len(records))
	for i, r := range records {
		points[i] = models.SeriesPoint{
			Timestamp:      r.Timestamp.Format(time.RFC3339Nano),
			LatencyMs:      r.LatencyMs,
			JitterMs:       r.JitterMs,
			PacketLossPct:  r.PacketLossPct,
			ThroughputMbps: r.ThroughputMbps,
			HealthScore:    r.HealthScore,
			MLAnomaly:      r.MLAnomaly,
		}
	}
	return points
}

// Critical записи со статусом Critical; без колонки health_status возвращает ErrNotEnriched
func Critical(t *table.Table, records []models.EnrichedRecord) ([]models.EnrichedRecord, error) {
	if !t.Has(models.ColHealthStatus) {
		return nil, ErrNotEnriched
	}
	var out []models.EnrichedRecord
	for _, r := range records {
		if r.HealthStatus == models.StatusCritical {
			out = append(out, r)
		}
	}
	return out, nil
}
