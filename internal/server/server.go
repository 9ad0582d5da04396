// Пакет server — HTTPS-сервер Balancer с graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/balancer/internal/api/errors"
	"github.com/bigkaa/goartstore/balancer/internal/api/handlers"
	"github.com/bigkaa/goartstore/balancer/internal/api/middleware"
	"github.com/bigkaa/goartstore/balancer/internal/config"
)

// Server — HTTPS-сервер Balancer.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTPS-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler) *Server {
	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      NewRouter(handler, logger),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		// Ошибки TLS handshake и обрыва соединений только логируются
		ErrorLog: slog.NewLogLogger(logger.With(slog.String("component", "http_server")).Handler(), slog.LevelWarn),
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter создаёт chi router с маршрутами dispatcher.
// Неизвестный путь или метод — 404 в стандартном формате ошибки.
func NewRouter(handler *handlers.APIHandler, logger *slog.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/", handler.Root)
	router.Post("/create", handler.CreateClient)
	router.Post("/login", handler.Login)

	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	notFound := func(w http.ResponseWriter, r *http.Request) {
		apierrors.NotFound(w, fmt.Sprintf("%s %s не найден", r.Method, r.URL.Path))
	}
	router.NotFound(notFound)
	router.MethodNotAllowed(notFound)

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTPS-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTPS-сервера: %w", err)
		}
	}

	return s.Shutdown()
}

// Shutdown выполняет graceful shutdown: дожидается завершения
// обрабатываемых запросов в пределах ShutdownTimeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTPS-сервер остановлен")
	return nil
}
