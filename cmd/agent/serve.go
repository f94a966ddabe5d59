package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/config"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/health"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/server"
)

const (
	// shutdownTimeout bounds the graceful drain of the HTTP servers.
	shutdownTimeout = 30 * time.Second

	// probeInterval is how often the readiness conditions and the liveness
	// heartbeat are refreshed.
	probeInterval = 10 * time.Second
)

// newServeCommand creates the serve subcommand.
func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP API",
		Long: `Run the agent's HTTP API together with its Prometheus metrics endpoint
and Kubernetes health probes. The process drains gracefully on SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting k8s ai query agent",
		"version", version,
		"backend", cfg.Model.Backend)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Health probes.
	healthHandler := health.NewHandler(health.WithLogger(logger))
	healthSrv, err := health.NewServer(healthHandler, cfg.Health.Port)
	if err != nil {
		return fmt.Errorf("creating health server: %w", err)
	}
	go func() {
		if serveErr := healthSrv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("health server failed", "error", serveErr)
		}
	}()

	// Metrics endpoint.
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled == nil || *cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux,
		}
		go func() {
			if serveErr := metricsSrv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", serveErr)
			}
		}()
	}

	// API.
	apiHandler, err := server.NewHandler(app.orch, app.queries, app.metrics,
		server.WithLogger(logger),
		server.WithModelInfo(cfg.Model.Backend, modelName(cfg)))
	if err != nil {
		return fmt.Errorf("creating api handler: %w", err)
	}
	apiSrv, err := server.NewServer(apiHandler, cfg.Server.Host, cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	go func() {
		if serveErr := apiSrv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("api server failed", "error", serveErr)
		}
	}()

	go refreshReadiness(ctx, app, healthHandler)

	logger.Info("agent initialized, waiting for signal",
		"apiPort", cfg.Server.Port,
		"metricsPort", cfg.Metrics.Port,
		"healthPort", cfg.Health.Port,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}

	logger.Info("agent stopped")
	return nil
}

// refreshReadiness keeps the health probes current: each tick updates the
// liveness heartbeat and re-checks the API server connection and the model
// backend.
func refreshReadiness(ctx context.Context, app *app, h *health.Handler) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		_, err := app.kube.ListNamespaces(probeCtx, "")
		h.SetAPIServerReachable(err == nil)
		if err != nil {
			app.logger.Warn("cluster readiness probe failed", "error", err)
		}

		h.SetModelReady(app.model.Healthy(probeCtx))
		h.UpdateHeartbeat()
	}

	probe()
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
