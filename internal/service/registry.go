// registry.go — реестр клиентов: login → учётная запись.
//
// Create резервирует login под мьютексом, затем вне мьютекса выбирает
// storage node и вызывает create_client. Резерв снимается при любом исходе;
// учётная запись вставляется целиком, частично заполненная запись не видна.
// Реестр живёт только в памяти процесса.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// Prometheus метрики реестра клиентов
var (
	// clientsTotal — текущее число зарегистрированных клиентов.
	clientsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bl_clients_total",
		Help: "Текущее количество зарегистрированных клиентов",
	})

	// clientOperationsTotal — операции create/login по результату.
	clientOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bl_client_operations_total",
		Help: "Общее количество операций с клиентами",
	}, []string{"operation", "result"})
)

// Assigner — round-robin выбор storage node.
type Assigner interface {
	Next() (model.StorageRecord, bool)
}

// ClientCreator — удалённое создание клиента на storage node.
type ClientCreator interface {
	CreateClient(ctx context.Context, addr model.StorageAddress, clientID string) (string, error)
}

// ClientRegistry — реестр учётных записей клиентов.
type ClientRegistry struct {
	assigner      Assigner
	creator       ClientCreator
	createTimeout time.Duration
	logger        *slog.Logger

	mu       sync.RWMutex
	accounts map[string]*model.ClientAccount
	// pending — login, для которых create выполняется прямо сейчас
	pending map[string]struct{}
}

// NewClientRegistry создаёт пустой реестр клиентов.
func NewClientRegistry(
	assigner Assigner,
	creator ClientCreator,
	createTimeout time.Duration,
	logger *slog.Logger,
) *ClientRegistry {
	return &ClientRegistry{
		assigner:      assigner,
		creator:       creator,
		createTimeout: createTimeout,
		logger:        logger.With(slog.String("component", "client_registry")),
		accounts:      make(map[string]*model.ClientAccount),
		pending:       make(map[string]struct{}),
	}
}

// Create регистрирует клиента и закрепляет его за storage node.
// Повторов нет: при ошибке вызывающая сторона повторяет запрос сама.
func (r *ClientRegistry) Create(ctx context.Context, login, password string) (*model.ClientAccount, error) {
	if login == "" || password == "" {
		clientOperationsTotal.WithLabelValues("create", "missing_credentials").Inc()
		return nil, ErrMissingCredentials
	}

	if !r.reserve(login) {
		clientOperationsTotal.WithLabelValues("create", "duplicate").Inc()
		return nil, ErrDuplicateLogin
	}
	defer r.release(login)

	storage, ok := r.assigner.Next()
	if !ok {
		clientOperationsTotal.WithLabelValues("create", "no_storage").Inc()
		return nil, ErrNoStorageAvailable
	}

	createCtx, cancel := context.WithTimeout(ctx, r.createTimeout)
	defer cancel()

	remoteUUID, err := r.creator.CreateClient(createCtx, storage.Address, login)
	if err != nil {
		clientOperationsTotal.WithLabelValues("create", "backend_failed").Inc()
		r.logger.Warn("Storage node не создал клиента",
			slog.String("login", login),
			slog.String("storage", storage.Address.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrBackendCreateFailed, err)
	}
	if remoteUUID == "" {
		clientOperationsTotal.WithLabelValues("create", "backend_failed").Inc()
		return nil, fmt.Errorf("%w: пустой uuid от %s", ErrBackendCreateFailed, storage.Address)
	}

	account := &model.ClientAccount{
		Login:      login,
		Password:   password,
		ClientID:   login,
		RemoteUUID: remoteUUID,
		Storage:    storage.Address,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	r.accounts[login] = account
	count := len(r.accounts)
	r.mu.Unlock()

	clientsTotal.Set(float64(count))
	clientOperationsTotal.WithLabelValues("create", "ok").Inc()

	r.logger.Info("Клиент зарегистрирован",
		slog.String("login", login),
		slog.String("storage", storage.Address.String()),
		slog.String("uuid", remoteUUID),
	)

	clone := *account
	return &clone, nil
}

// Authenticate проверяет login и password. Реестр не изменяется.
func (r *ClientRegistry) Authenticate(login, password string) (*model.ClientAccount, error) {
	if login == "" || password == "" {
		clientOperationsTotal.WithLabelValues("login", "missing_credentials").Inc()
		return nil, ErrMissingCredentials
	}

	r.mu.RLock()
	account, ok := r.accounts[login]
	var clone model.ClientAccount
	if ok {
		clone = *account
	}
	r.mu.RUnlock()

	if !ok {
		clientOperationsTotal.WithLabelValues("login", "unknown_login").Inc()
		return nil, ErrUnknownLogin
	}

	// Пароль хранится и сравнивается в открытом виде (совместимость с terminal-клиентом)
	if clone.Password != password {
		clientOperationsTotal.WithLabelValues("login", "bad_credentials").Inc()
		return nil, ErrBadCredentials
	}

	clientOperationsTotal.WithLabelValues("login", "ok").Inc()
	return &clone, nil
}

// Count возвращает число зарегистрированных клиентов.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// reserve атомарно проверяет, что login свободен, и резервирует его.
func (r *ClientRegistry) reserve(login string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[login]; exists {
		return false
	}
	if _, inFlight := r.pending[login]; inFlight {
		return false
	}
	r.pending[login] = struct{}{}
	return true
}

// release снимает резерв login.
func (r *ClientRegistry) release(login string) {
	r.mu.Lock()
	delete(r.pending, login)
	r.mu.Unlock()
}
