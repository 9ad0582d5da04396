// Точка входа storage-stub — storage node для локального запуска Balancer.
// Отвечает на GET /ping и POST /create_client, остальное не реализовано.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/balancer/internal/config"
	"github.com/bigkaa/goartstore/balancer/internal/storagestub"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// stubOptions — параметры запуска storage-stub.
type stubOptions struct {
	address     string
	port        int
	certificate string
	key         string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &stubOptions{}

	cmd := &cobra.Command{
		Use:           "storage-stub",
		Short:         "Minimal cpp-fs storage node: ping and create_client",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStub(opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.address, "address", "a", "localhost", "server address to use")
	f.IntVarP(&opts.port, "port", "p", 8443, "port to bind to")
	f.StringVarP(&opts.certificate, "certificate", "c", "", "path to certificate file (plain HTTP if empty)")
	f.StringVarP(&opts.key, "key", "k", "", "path to key file")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func runStub(opts *stubOptions) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	if (opts.certificate == "") != (opts.key == "") {
		return errors.New("--certificate и --key задаются вместе")
	}

	logger := config.SetupLogger(&config.Config{LogLevel: level, LogFormat: "text"})
	stub := storagestub.New(logger)

	srv := &http.Server{
		Addr:              net.JoinHostPort(opts.address, strconv.Itoa(opts.port)),
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	useTLS := opts.certificate != ""
	if useTLS {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Storage stub запущен",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", useTLS),
		)

		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(opts.certificate, opts.key)
		} else {
			err = srv.ListenAndServe()
		}
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
		logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
