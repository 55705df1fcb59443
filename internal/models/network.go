// Package models содержит структуры данных телеметрии точек доступа и обогащенных записей
package models

import (
	"fmt"
	"math"
	"time"
)

// HealthStatus полоса здоровья устройства
type HealthStatus string

const (
	StatusCritical HealthStatus = "Critical"
	StatusDegraded HealthStatus = "Degraded"
	StatusHealthy  HealthStatus = "Healthy"
)

// MetricSnapshot представляет один снимок телеметрии точки доступа
type MetricSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Device         string    `json:"device"`
	LatencyMs      float64   `json:"latency_ms"`
	JitterMs       float64   `json:"jitter_ms"`
	PacketLossPct  float64   `json:"packet_loss_pct"`
	ThroughputMbps float64   `json:"throughput_mbps"`
}

// Features возвращает вектор признаков для модели выбросов
func (s MetricSnapshot) Features() []float64 {
	return []float64{s.LatencyMs, s.JitterMs, s.PacketLossPct, s.ThroughputMbps}
}

// Validate проверяет, что значения метрик конечны и лежат в допустимых границах
func (s MetricSnapshot) Validate() error {
	fields := []struct {
		name  string
		value float64
		max   float64
	}{
		{ColLatency, s.LatencyMs, math.Inf(1)},
		{ColJitter, s.JitterMs, math.Inf(1)},
		{ColPacketLoss, s.PacketLossPct, 100},
		{ColThroughput, s.ThroughputMbps, math.Inf(1)},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not a finite number", f.name)
		}
		if f.value < 0 || f.value > f.max {
			return fmt.Errorf("%s=%g is out of range", f.name, f.value)
		}
	}
	return nil
}

// EnrichedRecord снимок вместе со всеми производными колонками конвейера
type EnrichedRecord struct {
	MetricSnapshot
	AnomalyScore        float64      `json:"ml_score"`
	StatisticalAnomaly  bool         `json:"statistical_anomaly"`
	BehavioralAnomaly   bool         `json:"behavioral_anomaly"`
	MLAnomaly           bool         `json:"ml_anomaly"`
	LatencyDelta        float64      `json:"latency_delta"`
	JitterDelta         float64      `json:"jitter_delta"`
	HealthScore         int          `json:"health_score"`
	HealthStatus        HealthStatus `json:"health_status"`
	RootCause           string       `json:"root_cause"`
	RootCauseConfidence float64      `json:"root_cause_confidence"`
	Recommendation      string       `json:"recommendation"`
}

// KPISummary агрегаты для панели мониторинга
type KPISummary struct {
	Total           int       `json:"total"`
	Critical        int       `json:"critical"`
	Degraded        int       `json:"degraded"`
	Healthy         int       `json:"healthy"`
	PredictedBreach int       `json:"predicted_breach"`
	Anomalies       int       `json:"anomalies"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// SeriesPoint точка временного ряда устройства для визуализации
type SeriesPoint struct {
	Timestamp      string  `json:"timestamp"`
	LatencyMs      float64 `json:"latency_ms"`
	JitterMs       float64 `json:"jitter_ms"`
	PacketLossPct  float64 `json:"packet_loss_pct"`
	ThroughputMbps float64 `json:"throughput_mbps"`
	HealthScore    int     `json:"health_score"`
	MLAnomaly      bool    `json:"ml_anomaly"`
}

// ServiceHealth представляет статус здоровья HTTP сервиса
type ServiceHealth struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Table     string    `json:"table"`
	// SkippedRows строки таблицы, которые не удалось декодировать
	SkippedRows int    `json:"skipped_rows"`
	Uptime      string `json:"uptime"`
}
