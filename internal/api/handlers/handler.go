// handler.go — основной обработчик API Balancer.
// Объединяет обработчики клиентов и health endpoints и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// ClientService — операции реестра клиентов, используемые обработчиками.
type ClientService interface {
	Create(ctx context.Context, login, password string) (*model.ClientAccount, error)
	Authenticate(login, password string) (*model.ClientAccount, error)
}

// APIHandler — основной обработчик API Balancer.
type APIHandler struct {
	health  *HealthHandler
	clients ClientService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, clients ClientService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:  health,
		clients: clients,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
