package models

// Входные колонки, которые пишет сборщик телеметрии
const (
	ColTimestamp  = "timestamp"
	ColDevice     = "device"
	ColLatency    = "latency_ms"
	ColJitter     = "jitter_ms"
	ColPacketLoss = "packet_loss_pct"
	ColThroughput = "throughput_mbps"
)

// Производные колонки конвейера обогащения
const (
	ColMLScore             = "ml_score"
	ColStatisticalAnomaly  = "statistical_anomaly"
	ColBehavioralAnomaly   = "behavioral_anomaly"
	ColMLAnomaly           = "ml_anomaly"
	ColLatencyDelta        = "latency_delta"
	ColJitterDelta         = "jitter_delta"
	ColHealthScore         = "health_score"
	ColHealthStatus        = "health_status"
	ColRootCause           = "root_cause"
	ColRootCauseConfidence = "root_cause_confidence"
	ColRecommendation      = "recommendation"
	ColPrompt              = "llm_prompt"
	// ColBreachPrediction пишет внешний прогнозист SLA, конвейер только читает
	ColBreachPrediction = "breach_pred"
)

// InputColumns обязательные колонки входной таблицы
var InputColumns = []string{
	ColTimestamp,
	ColDevice,
	ColLatency,
	ColJitter,
	ColPacketLoss,
	ColThroughput,
}

// FeatureColumns признаки модели выбросов
var FeatureColumns = []string{
	ColLatency,
	ColJitter,
	ColPacketLoss,
	ColThroughput,
}
