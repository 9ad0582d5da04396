// Пакет config — загрузка и валидация конфигурации Balancer
// из переменных окружения и флагов командной строки.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Balancer.
type Config struct {
	// --- Сервер ---

	// Адрес, на котором слушает HTTPS-сервер (по умолчанию localhost)
	Address string
	// Порт HTTPS-сервера
	Port int
	// Путь к TLS сертификату
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Storage nodes ---

	// Статический список storage nodes (host:port)
	Storages []model.StorageAddress
	// Схема обращения к storage nodes (https, http)
	StorageScheme string
	// Путь к CA-сертификату storage nodes (опционально)
	StorageCACert string
	// Отключить проверку TLS сертификатов storage nodes (self-signed в dev)
	StorageTLSSkipVerify bool

	// --- Health monitor ---

	// Интервал проверки доступности storage nodes
	HealthCheckInterval time.Duration
	// Таймаут одного ping
	ProbeTimeout time.Duration
	// Максимум одновременных ping в рамках одного обхода
	MaxConcurrentProbes int
	// Таймаут вызова create_client
	CreateClientTimeout time.Duration

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- topologymetrics ---

	// Включить мониторинг storage nodes через topologymetrics
	DephealthEnabled bool
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения.
// Обязательные параметры (TLS, список storage nodes) проверяются в Validate,
// т.к. их можно задать и флагами командной строки.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// BL_ADDRESS — адрес прослушивания (по умолчанию localhost)
	cfg.Address = getEnvDefault("BL_ADDRESS", "localhost")

	// BL_PORT — порт HTTPS-сервера (по умолчанию 4443)
	cfg.Port, err = getEnvInt("BL_PORT", 4443)
	if err != nil {
		return nil, fmt.Errorf("BL_PORT: %w", err)
	}

	cfg.TLSCert = getEnvDefault("BL_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("BL_TLS_KEY", "")

	// BL_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BL_LOG_LEVEL: %w", err)
	}

	// BL_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BL_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BL_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Storage nodes ---

	// BL_STORAGES — список storage nodes через запятую: host1:port1,host2:port2
	if raw := getEnvDefault("BL_STORAGES", ""); raw != "" {
		cfg.Storages, err = ParseStorageList(strings.Split(raw, ","))
		if err != nil {
			return nil, fmt.Errorf("BL_STORAGES: %w", err)
		}
	}

	// BL_STORAGE_SCHEME — схема обращения к storage nodes (по умолчанию https)
	cfg.StorageScheme = getEnvDefault("BL_STORAGE_SCHEME", "https")

	cfg.StorageCACert = getEnvDefault("BL_STORAGE_CA_CERT", "")

	cfg.StorageTLSSkipVerify, err = getEnvBool("BL_STORAGE_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("BL_STORAGE_TLS_SKIP_VERIFY: %w", err)
	}

	// --- Health monitor ---

	// BL_HEALTH_CHECK_INTERVAL — интервал обхода storage nodes (по умолчанию 30s)
	cfg.HealthCheckInterval, err = getEnvDuration("BL_HEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_HEALTH_CHECK_INTERVAL: %w", err)
	}

	// BL_PROBE_TIMEOUT — таймаут одного ping (по умолчанию 2s)
	cfg.ProbeTimeout, err = getEnvDuration("BL_PROBE_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_PROBE_TIMEOUT: %w", err)
	}

	cfg.MaxConcurrentProbes, err = getEnvInt("BL_MAX_CONCURRENT_PROBES", 8)
	if err != nil {
		return nil, fmt.Errorf("BL_MAX_CONCURRENT_PROBES: %w", err)
	}

	// BL_CREATE_CLIENT_TIMEOUT — таймаут create_client (по умолчанию 5s)
	cfg.CreateClientTimeout, err = getEnvDuration("BL_CREATE_CLIENT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_CREATE_CLIENT_TIMEOUT: %w", err)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("BL_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("BL_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("BL_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// BL_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("BL_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthEnabled, err = getEnvBool("BL_DEPHEALTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("BL_DEPHEALTH_ENABLED: %w", err)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("BL_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BL_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.DephealthGroup = getEnvDefault("BL_DEPHEALTH_GROUP", "cppfs")

	return cfg, nil
}

// Validate проверяет итоговую конфигурацию (после применения флагов).
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("порт %d вне допустимого диапазона 1-65535", c.Port)
	}
	if c.TLSCert == "" {
		return fmt.Errorf("BL_TLS_CERT: обязательный параметр не задан")
	}
	if c.TLSKey == "" {
		return fmt.Errorf("BL_TLS_KEY: обязательный параметр не задан")
	}
	if len(c.Storages) == 0 {
		return fmt.Errorf("BL_STORAGES: список storage nodes пуст")
	}
	if c.StorageScheme != "https" && c.StorageScheme != "http" {
		return fmt.Errorf("BL_STORAGE_SCHEME: недопустимое значение %q, допустимые: https, http", c.StorageScheme)
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("BL_HEALTH_CHECK_INTERVAL: значение должно быть > 0")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("BL_PROBE_TIMEOUT: значение должно быть > 0")
	}
	if c.CreateClientTimeout <= 0 {
		return fmt.Errorf("BL_CREATE_CLIENT_TIMEOUT: значение должно быть > 0")
	}
	if c.MaxConcurrentProbes < 1 {
		return fmt.Errorf("BL_MAX_CONCURRENT_PROBES: значение должно быть >= 1")
	}
	return nil
}

// ListenAddr возвращает адрес прослушивания в формате host:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// ParseStorageList разбирает список адресов storage nodes.
// Пустые элементы пропускаются, дубликаты — ошибка.
func ParseStorageList(items []string) ([]model.StorageAddress, error) {
	seen := make(map[model.StorageAddress]bool, len(items))
	result := make([]model.StorageAddress, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		addr, err := model.ParseStorageAddress(item)
		if err != nil {
			return nil, err
		}
		if seen[addr] {
			return nil, fmt.Errorf("дублирующийся адрес storage node %q", item)
		}
		seen[addr] = true
		result = append(result, addr)
	}

	return result, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1m, 2s)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
