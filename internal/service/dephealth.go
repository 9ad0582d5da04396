// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Balancer мониторит каждый storage node из статического списка
// (HTTP checker к /ping, non-critical: отказ одного storage node
// не делает balancer неработоспособным).
//
// Решения о назначении принимает HealthMonitor; topologymetrics
// только публикует граф зависимостей в метриках /metrics:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// maxDepNameLen — ограничение длины имени зависимости (DNS label).
const maxDepNameLen = 63

// StorageEndpoint — storage node как зависимость topologymetrics.
type StorageEndpoint struct {
	Address model.StorageAddress
	// BaseURL — scheme://host:port
	BaseURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения ("balancer")
//   - group — имя группы в метриках (BL_DEPHEALTH_GROUP)
//   - storages — storage nodes из конфигурации
//   - checkInterval — интервал проверки (BL_DEPHEALTH_CHECK_INTERVAL)
//   - skipVerify — не проверять TLS сертификаты storage nodes
func NewDephealthService(
	serviceID string,
	group string,
	storages []StorageEndpoint,
	checkInterval time.Duration,
	skipVerify bool,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, storages, checkInterval, skipVerify, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	storages []StorageEndpoint,
	checkInterval time.Duration,
	skipVerify bool,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, storages, checkInterval, skipVerify, logger,
		dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	serviceID string,
	group string,
	storages []StorageEndpoint,
	checkInterval time.Duration,
	skipVerify bool,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := make([]dephealth.Option, 0, 1+len(storages)+len(extraOpts))
	opts = append(opts, dephealth.WithLogger(logger))

	for _, se := range storages {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromURL(se.BaseURL),
			dephealth.WithHTTPHealthPath("/ping"),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		}
		if strings.HasPrefix(se.BaseURL, "https://") {
			depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(skipVerify))
		}
		opts = append(opts, dephealth.HTTP(normalizeStorageDepName(se.Address.String()), depOpts...))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (storage nodes)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// normalizeStorageDepName приводит адрес storage node к имени зависимости:
// нижний регистр, [a-z0-9-], без повторных и крайних дефисов, не длиннее 63,
// начинается с буквы (иначе префикс "se-").
func normalizeStorageDepName(raw string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(raw) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	name := strings.Trim(b.String(), "-")
	if name == "" {
		return "unknown-se"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "se-" + name
	}
	if len(name) > maxDepNameLen {
		name = strings.TrimRight(name[:maxDepNameLen], "-")
	}
	return name
}
