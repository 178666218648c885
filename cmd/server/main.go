// Command server exposes the control API: trigger snapshot runs, poll run
// status, health checks and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cnpulse/internal/app"
	"cnpulse/internal/config"
	"cnpulse/internal/infrastructure"
	"cnpulse/internal/metrics"
	"cnpulse/internal/runner"
	transport "cnpulse/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Paths.EnsureDirs(); err != nil {
		return err
	}

	logger, logCloser, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	slog.SetDefault(logger)

	providers, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()

	// Pipeline counters share the OTel Prometheus registry so /metrics
	// serves both.
	m := metrics.NewPipeline(providers.Registry)

	runFunc := func(ctx context.Context, params transport.RunParams) (*runner.Summary, error) {
		return app.ExecuteRun(ctx, cfg, m, logger, app.RunOverrides{
			Markets:      params.Markets,
			Limit:        params.Limit,
			Codes:        params.Codes,
			SnapshotDate: params.SnapshotDate,
		})
	}

	router := transport.NewRouter(transport.RouterConfig{
		Runs:     transport.NewRunsHandler(runFunc, logger),
		Health:   transport.NewHealthHandler(cfg.Paths, infrastructure.ServiceVersion),
		Registry: providers.Registry,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", cfg.Server.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
