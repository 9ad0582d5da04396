// health.go — обработчики health endpoints Balancer.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (есть хотя бы один active storage node,
//   плюс состояние зависимостей topologymetrics, если включён)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/balancer/internal/config"
)

// StorageCounter — текущее разбиение storage nodes.
type StorageCounter interface {
	Counts() (active, inactive int)
}

// DependencyReporter — состояние storage nodes по данным topologymetrics.
type DependencyReporter interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	storages    StorageCounter
	deps        DependencyReporter
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil, если topologymetrics отключён.
func NewHealthHandler(storages StorageCounter, deps DependencyReporter) *HealthHandler {
	return &HealthHandler{
		storages:    storages,
		deps:        deps,
		promHandler: promhttp.Handler(),
	}
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Storages  struct {
		Active   int `json:"active"`
		Inactive int `json:"inactive"`
	} `json:"storages"`
	// Dependencies — только для информации, на статус не влияет
	Dependencies map[string]bool `json:"dependencies,omitempty"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "balancer",
	})
}

// HealthReady — readiness probe. 200, если есть active storage node, иначе 503.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "balancer",
	}
	resp.Storages.Active, resp.Storages.Inactive = h.storages.Counts()
	if h.deps != nil {
		resp.Dependencies = h.deps.Health()
	}

	if resp.Storages.Active == 0 {
		resp.Status = "fail"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "ok"
	if resp.Storages.Inactive > 0 {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
