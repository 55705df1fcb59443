// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество HTTP запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpulse_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность HTTP запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netpulse_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// RowsEnriched количество обработанных строк по этапам
	RowsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpulse_rows_enriched_total",
			Help: "Total number of rows enriched by stage",
		},
		[]string{"stage"},
	)

	// AnomaliesDetected количество аномалий по виду детектора
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpulse_anomalies_detected_total",
			Help: "Total number of anomalies detected by kind",
		},
		[]string{"kind"},
	)

	// DevicesByStatus количество строк последнего прогона по полосе здоровья
	DevicesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netpulse_rows_by_health_status",
			Help: "Rows of the last run by health status",
		},
		[]string{"status"},
	)

	// StageDuration время выполнения этапа
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netpulse_stage_duration_seconds",
			Help:    "Stage computation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"stage"},
	)

	// RunsTotal завершенные прогоны по результату
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpulse_runs_total",
			Help: "Total number of pipeline runs by result",
		},
		[]string{"result"},
	)

	// TableReloads перечитывания таблицы HTTP сервисом
	TableReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netpulse_table_reloads_total",
			Help: "Total number of table reloads by the HTTP service",
		},
	)
)

// UpdateAnomalyMetrics обновляет счетчики аномалий
func UpdateAnomalyMetrics(statistical, behavioral, combined int) {
	AnomaliesDetected.WithLabelValues("statistical").Add(float64(statistical))
	AnomaliesDetected.WithLabelValues("behavioral").Add(float64(behavioral))
	AnomaliesDetected.WithLabelValues("combined").Add(float64(combined))
}

// UpdateHealthMetrics выставляет распределение по полосам здоровья
func UpdateHealthMetrics(critical, degraded, healthy int) {
	DevicesByStatus.WithLabelValues("Critical").Set(float64(critical))
	DevicesByStatus.WithLabelValues("Degraded").Set(float64(degraded))
	DevicesByStatus.WithLabelValues("Healthy").Set(float64(healthy))
}

// Push отправляет метрики прогона в Pushgateway; пакетный запуск не живет
// достаточно долго, чтобы его опрашивал Prometheus
func Push(url, job string) error {
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}
