// Package handlers содержит HTTP обработчики для API только для чтения
// поверх обогащенной таблицы
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"netpulse/internal/metrics"
	"netpulse/internal/models"
	"netpulse/internal/summary"
)

// LatestSource источник последних опубликованных записей (Redis)
type LatestSource interface {
	GetLatest(ctx context.Context, device string) (models.EnrichedRecord, error)
	Ping(ctx context.Context) error
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	store     *Store
	latest    LatestSource
	logger    *zap.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик; latest может быть nil
func NewHandler(store *Store, latest LatestSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     store,
		latest:    latest,
		logger:    logger,
		startTime: time.Now(),
	}
}

// AlertsResponse ответ GET /alerts
type AlertsResponse struct {
	Enriched bool                    `json:"enriched"`
	Message  string                  `json:"message,omitempty"`
	Alerts   []models.EnrichedRecord `json:"alerts"`
}

// SummaryHandler обрабатывает GET /summary - агрегаты панели
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/summary", r.Method))
	defer timer.ObserveDuration()

	snap, ok := h.load(w, "/summary", r.Method)
	if !ok {
		return
	}

	kpi, err := summary.Summarize(snap.Table, time.Now())
	if err != nil {
		h.fail(w, "/summary", r.Method, err)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/summary", r.Method, "200").Inc()
	h.respondJSON(w, kpi, http.StatusOK)
}

// RecordsHandler обрабатывает GET /records - последние limit записей таблицы
func (h *Handler) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/records", r.Method))
	defer timer.ObserveDuration()

	snap, ok := h.load(w, "/records", r.Method)
	if !ok {
		return
	}

	records := snap.Records
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			h.respondError(w, "Invalid limit: "+limitStr, http.StatusBadRequest)
			metrics.RequestsTotal.WithLabelValues("/records", r.Method, "400").Inc()
			return
		}
		if limit < len(records) {
			records = records[len(records)-limit:]
		}
	}
	if records == nil {
		records = []models.EnrichedRecord{}
	}

	metrics.RequestsTotal.WithLabelValues("/records", r.Method, "200").Inc()
	h.respondJSON(w, records, http.StatusOK)
}

// DevicesHandler обрабатывает GET /devices - список устройств
func (h *Handler) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/devices", r.Method))
	defer timer.ObserveDuration()

	snap, ok := h.load(w, "/devices", r.Method)
	if !ok {
		return
	}

	devices := summary.Devices(snap.Records)
	if devices == nil {
		devices = []string{}
	}
	metrics.RequestsTotal.WithLabelValues("/devices", r.Method, "200").Inc()
	h.respondJSON(w, devices, http.StatusOK)
}

// DeviceRecordsHandler обрабатывает GET /devices/{device}/records - временной ряд устройства
func (h *Handler) DeviceRecordsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{device}/records"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	snap, ok := h.load(w, endpoint, r.Method)
	if !ok {
		return
	}

	device := mux.Vars(r)["device"]
	series := summary.Series(snap.Records, device)
	if len(series) == 0 {
		h.respondError(w, "Unknown device: "+device, http.StatusNotFound)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "404").Inc()
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, summary.Points(series), http.StatusOK)
}

// LatestHandler обрабатывает GET /devices/{device}/latest - запись, опубликованная в Redis
func (h *Handler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{device}/latest"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	if h.latest == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "503").Inc()
		return
	}

	device := mux.Vars(r)["device"]
	rec, err := h.latest.GetLatest(r.Context(), device)
	if errors.Is(err, redis.Nil) {
		h.respondError(w, "No published record for device: "+device, http.StatusNotFound)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "404").Inc()
		return
	}
	if err != nil {
		h.fail(w, endpoint, r.Method, err)
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, rec, http.StatusOK)
}

// AlertsHandler обрабатывает GET /alerts - строки со статусом Critical
func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/alerts", r.Method))
	defer timer.ObserveDuration()

	snap, ok := h.load(w, "/alerts", r.Method)
	if !ok {
		return
	}

	resp := AlertsResponse{Enriched: true, Alerts: []models.EnrichedRecord{}}
	critical, err := summary.Critical(snap.Table, snap.Records)
	switch {
	case errors.Is(err, summary.ErrNotEnriched):
		resp.Enriched = false
		resp.Message = "Table is not enriched yet"
	case err != nil:
		h.fail(w, "/alerts", r.Method, err)
		return
	case len(critical) == 0:
		resp.Message = NoCriticalMessage
	default:
		resp.Alerts = critical
	}

	metrics.RequestsTotal.WithLabelValues("/alerts", r.Method, "200").Inc()
	h.respondJSON(w, resp, http.StatusOK)
}

// NoCriticalMessage сообщение при отсутствии критичных строк
const NoCriticalMessage = "No critical anomalies detected."

// HealthHandler обрабатывает GET /health - проверка здоровья. Если таблицу не
// удается прочитать, сервис деградирован и отвечает 503
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.latest != nil {
		redisStatus = "disconnected"
		if h.latest.Ping(r.Context()) == nil {
			redisStatus = "connected"
		}
	}

	status := models.ServiceHealth{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Table:     "ok",
		Uptime:    time.Since(h.startTime).String(),
	}
	code := http.StatusOK

	snap, err := h.store.Load()
	if err != nil {
		status.Status = "degraded"
		status.Table = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		status.SkippedRows = len(snap.Skipped)
	}

	h.respondJSON(w, status, code)
}

// load читает таблицу; ошибку разбора отдает как 500
func (h *Handler) load(w http.ResponseWriter, endpoint, method string) (*Snapshot, bool) {
	snap, err := h.store.Load()
	if err != nil {
		h.fail(w, endpoint, method, err)
		return nil, false
	}
	return snap, true
}

func (h *Handler) fail(w http.ResponseWriter, endpoint, method string, err error) {
	h.logger.Error("Request failed", zap.String("endpoint", endpoint), zap.Error(err))
	h.respondError(w, err.Error(), http.StatusInternalServerError)
	metrics.RequestsTotal.WithLabelValues(endpoint, method, "500").Inc()
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
