// Package health вычисляет индекс здоровья точки доступа 0..100 и полосу статуса
package health

import (
	"math"

	"netpulse/internal/models"
)

const (
	// BaseScore исходный балл до штрафов
	BaseScore = 100
	// CriticalBelow баллы ниже этого значения дают Critical
	CriticalBelow = 60
	// HealthyFrom баллы от этого значения дают Healthy
	HealthyFrom = 80
	// AnomalyPenalty фиксированный штраф за ml_anomaly
	AnomalyPenalty = 20.0
)

// Penalties штрафы по составляющим, каждый ограничен своим потолком
type Penalties struct {
	Latency    float64 `json:"latency"`
	PacketLoss float64 `json:"packet_loss"`
	Jitter     float64 `json:"jitter"`
	Throughput float64 `json:"throughput"`
	Anomaly    float64 `json:"anomaly"`
}

// Total сумма штрафов
func (p Penalties) Total() float64 {
	return p.Latency + p.PacketLoss + p.Jitter + p.Throughput + p.Anomaly
}

// Result балл, полоса и разложение штрафов
type Result struct {
	Score     int                 `json:"health_score"`
	Status    models.HealthStatus `json:"health_status"`
	Penalties Penalties           `json:"penalties"`
}

// ComputePenalties считает штрафы в фиксированном порядке
func ComputePenalties(s models.MetricSnapshot, mlAnomaly bool) Penalties {
	var p Penalties
	if s.LatencyMs > 100 {
		p.Latency = math.Min((s.LatencyMs-100)*0.2, 25)
	}
	p.PacketLoss = math.Min(s.PacketLossPct*10, 30)
	p.Jitter = math.Min(s.JitterMs*0.5, 20)
	if s.ThroughputMbps < 50 {
		p.Throughput = math.Min((50-s.ThroughputMbps)*0.5, 15)
	}
	if mlAnomaly {
		p.Anomaly = AnomalyPenalty
	}
	return p
}

// Score чистая функция снимка и флага аномалии
func Score(s models.MetricSnapshot, mlAnomaly bool) Result {
	p := ComputePenalties(s, mlAnomaly)
	score := int(math.Max(BaseScore-p.Total(), 0))
	return Result{
		Score:     score,
		Status:    StatusFor(score),
		Penalties: p,
	}
}

// StatusFor полоса статуса по баллу: 60 уже Degraded, 80 уже Healthy
func StatusFor(score int) models.HealthStatus {
	switch {
	case score < CriticalBelow:
		return models.StatusCritical
	case score < HealthyFrom:
		return models.StatusDegraded
	default:
		return models.StatusHealthy
	}
}
