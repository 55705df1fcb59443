package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter настраивает маршруты API
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/summary", h.SummaryHandler).Methods("GET")
	router.HandleFunc("/records", h.RecordsHandler).Methods("GET")
	router.HandleFunc("/devices", h.DevicesHandler).Methods("GET")
	router.HandleFunc("/devices/{device}/records", h.DeviceRecordsHandler).Methods("GET")
	router.HandleFunc("/devices/{device}/latest", h.LatestHandler).Methods("GET")
	router.HandleFunc("/alerts", h.AlertsHandler).Methods("GET")
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	router.Use(loggingMiddleware(h.logger))
	return router
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("Request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
