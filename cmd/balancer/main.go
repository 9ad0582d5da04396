// Точка входа Balancer — dispatcher клиентов cpp-fs.
// Загружает конфигурацию (env + флаги), создаёт пул storage nodes,
// выполняет стартовый обход health monitor, запускает реестр клиентов,
// мониторинг topologymetrics и HTTPS-сервер с graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/balancer/internal/api/handlers"
	"github.com/bigkaa/goartstore/balancer/internal/config"
	"github.com/bigkaa/goartstore/balancer/internal/domain/pool"
	"github.com/bigkaa/goartstore/balancer/internal/seclient"
	"github.com/bigkaa/goartstore/balancer/internal/server"
	"github.com/bigkaa/goartstore/balancer/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd создаёт корневую команду balancer.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balancer",
		Short: "Logins clients, redirects connections from clients to cpp-fs nodes",
		Example: "  balancer -p 4443 -a localhost -c /tmp/cert.pem -k /tmp/key.pem " +
			"--storage se-1:8443 --storage se-2:8443",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
				return err
			}
			if err := applyFlags(cmd, cfg); err != nil {
				slog.Error("Некорректные аргументы", slog.String("error", err.Error()))
				return err
			}
			if err := cfg.Validate(); err != nil {
				slog.Error("Некорректная конфигурация", slog.String("error", err.Error()))
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringP("address", "a", "localhost", "server address to use (BL_ADDRESS)")
	f.IntP("port", "p", 4443, "port to bind to (BL_PORT)")
	f.StringP("certificate", "c", "", "path to certificate file (BL_TLS_CERT)")
	f.StringP("key", "k", "", "path to key file (BL_TLS_KEY)")
	f.StringArray("storage", nil, "storage node host:port, repeatable (BL_STORAGES)")
	f.Duration("health-interval", 30*time.Second, "storage health check interval (BL_HEALTH_CHECK_INTERVAL)")

	return cmd
}

// applyFlags переносит в конфигурацию только явно заданные флаги.
// Незаданный флаг не перекрывает переменную окружения.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if f.Changed("address") {
		if cfg.Address, err = f.GetString("address"); err != nil {
			return err
		}
	}
	if f.Changed("port") {
		if cfg.Port, err = f.GetInt("port"); err != nil {
			return err
		}
	}
	if f.Changed("certificate") {
		if cfg.TLSCert, err = f.GetString("certificate"); err != nil {
			return err
		}
	}
	if f.Changed("key") {
		if cfg.TLSKey, err = f.GetString("key"); err != nil {
			return err
		}
	}
	if f.Changed("storage") {
		items, err := f.GetStringArray("storage")
		if err != nil {
			return err
		}
		storages, err := config.ParseStorageList(items)
		if err != nil {
			return fmt.Errorf("--storage: %w", err)
		}
		cfg.Storages = storages
	}
	if f.Changed("health-interval") {
		if cfg.HealthCheckInterval, err = f.GetDuration("health-interval"); err != nil {
			return err
		}
	}
	return nil
}

// run собирает компоненты и блокируется до завершения HTTPS-сервера.
func run(cfg *config.Config) error {
	logger := config.SetupLogger(cfg)
	logger.Info("Balancer запускается",
		slog.String("version", config.Version),
		slog.String("addr", cfg.ListenAddr()),
		slog.Int("storages", len(cfg.Storages)),
	)

	// 1. Клиент storage nodes
	seClient, err := seclient.New(seclient.Options{
		Scheme:        cfg.StorageScheme,
		CACertPath:    cfg.StorageCACert,
		TLSSkipVerify: cfg.StorageTLSSkipVerify,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента storage nodes", slog.String("error", err.Error()))
		return err
	}

	// 2. Пул storage nodes
	storagePool, err := pool.New(cfg.Storages)
	if err != nil {
		logger.Error("Ошибка создания пула storage nodes", slog.String("error", err.Error()))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Health monitor: стартовый обход до приёма запросов
	monitor := service.NewHealthMonitor(
		storagePool,
		seClient,
		cfg.HealthCheckInterval,
		cfg.ProbeTimeout,
		cfg.MaxConcurrentProbes,
		logger,
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	active, inactive := storagePool.Counts()
	logger.Info("Стартовый обход storage nodes завершён",
		slog.Int("active", active),
		slog.Int("inactive", inactive),
	)

	// 4. Реестр клиентов
	registry := service.NewClientRegistry(storagePool, seClient, cfg.CreateClientTimeout, logger)

	// 5. topologymetrics (ошибка не блокирует запуск)
	var deps handlers.DependencyReporter
	if cfg.DephealthEnabled {
		endpoints := make([]service.StorageEndpoint, 0, len(cfg.Storages))
		for _, addr := range cfg.Storages {
			endpoints = append(endpoints, service.StorageEndpoint{
				Address: addr,
				BaseURL: seClient.BaseURL(addr),
			})
		}

		dephealthSvc, err := service.NewDephealthService(
			"balancer",
			cfg.DephealthGroup,
			endpoints,
			cfg.DephealthCheckInterval,
			cfg.StorageTLSSkipVerify,
			logger,
		)
		if err != nil {
			logger.Warn("Ошибка создания topologymetrics, мониторинг зависимостей отключён",
				slog.String("error", err.Error()),
			)
		} else if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		} else {
			defer dephealthSvc.Stop()
			deps = dephealthSvc
		}
	}

	// 6. HTTPS-сервер
	apiHandler := handlers.NewAPIHandler(handlers.NewHealthHandler(storagePool, deps), registry, logger)
	srv := server.New(cfg, logger, apiHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Balancer остановлен", slog.Int("clients", registry.Count()))
	return nil
}
