package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/dnscache"

	"github.com/eugener/golem/internal/blobstore"
	"github.com/eugener/golem/internal/config"
	"github.com/eugener/golem/internal/locale"
	"github.com/eugener/golem/internal/logsink"
	"github.com/eugener/golem/internal/server"
	"github.com/eugener/golem/internal/telemetry"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting golem", "version", version, "addr", cfg.Server.Addr)

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(context.Background(),
			cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	// Metrics
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	resolver := &dnscache.Resolver{}

	// Workers come up in dependency order: logging first so the others
	// have somewhere to emit, storage last because readiness gates on
	// it. Deferred closes run in reverse.
	logs := logsink.New(cfg.LogSink, metrics, resolver)
	if err := logs.Start(); err != nil {
		return err
	}
	defer logs.Close()

	locales := locale.New(cfg.Locale, metrics)
	if err := locales.Start(); err != nil {
		return err
	}
	defer locales.Close()

	blobs := blobstore.New(cfg.BlobStore, metrics)
	if err := blobs.Start(); err != nil {
		return err
	}
	defer blobs.Close()

	// Create HTTP server
	deps := server.Deps{
		ReadyCheck: blobs.Ping,
		Workers: func() []server.WorkerStatus {
			return []server.WorkerStatus{
				workerStatus("logging", logs.Status),
				workerStatus("localization", locales.Status),
				workerStatus("storage", blobs.Status),
			}
		},
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = metrics
		deps.Gatherer = reg
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("golem ready", "addr", cfg.Server.Addr)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("golem stopped")
	return nil
}

func workerStatus(name string, status func() (string, int)) server.WorkerStatus {
	state, pending := status()
	return server.WorkerStatus{Name: name, State: state, Pending: pending}
}
