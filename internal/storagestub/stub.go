// Пакет storagestub — storage node для локального запуска и тестов.
//
// Реализует только endpoints, которые использует Balancer:
//   - GET /ping → "pong\n"
//   - POST /create_client {"clientId": "..."} → {"uuid": "..."}
//
// Повторный create_client для того же clientId возвращает тот же uuid.
package storagestub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/balancer/internal/api/middleware"
)

// maxRequestBytes — максимальный размер тела create_client.
const maxRequestBytes = 4 << 10

// Stub — storage node в памяти процесса.
type Stub struct {
	logger  *slog.Logger
	healthy atomic.Bool

	mu      sync.Mutex
	clients map[string]string // clientId → uuid
}

// New создаёт доступный storage node без клиентов.
func New(logger *slog.Logger) *Stub {
	s := &Stub{
		logger:  logger.With(slog.String("component", "storage_stub")),
		clients: make(map[string]string),
	}
	s.healthy.Store(true)
	return s
}

// SetHealthy включает или выключает ответы storage node.
// Недоступный storage node отвечает 503 на все запросы.
func (s *Stub) SetHealthy(ok bool) {
	s.healthy.Store(ok)
	s.logger.Info("Состояние storage node изменено", slog.Bool("healthy", ok))
}

// ClientCount возвращает число созданных клиентов.
func (s *Stub) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler возвращает HTTP handler storage node.
func (s *Stub) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(s.logger))
	router.Use(s.availability)

	router.Get("/ping", s.ping)
	router.Post("/create_client", s.createClient)

	return router
}

// availability отвечает 503, пока storage node выключен.
func (s *Stub) availability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.healthy.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Stub) ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("pong\n"))
}

type createClientRequest struct {
	ClientID string `json:"clientId"`
}

type createClientResponse struct {
	UUID string `json:"uuid"`
}

func (s *Stub) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		http.Error(w, "clientId is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	id, ok := s.clients[req.ClientID]
	if !ok {
		id = uuid.NewString()
		s.clients[req.ClientID] = id
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Info("Клиент создан",
			slog.String("client_id", req.ClientID),
			slog.String("uuid", id),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(createClientResponse{UUID: id})
}
