package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/cropguard/internal/bootstrap"
	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/observability/logging"
	"github.com/kirillkom/cropguard/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		logger.Error("worker_requires_queue", "reason", "NATS_URL is empty")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName, cfg.AssetBackend)
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSAssetReleaseSubject, "asset_backend", cfg.AssetBackend)
	err = app.Queue.SubscribeAssetRelease(ctx, func(handlerCtx context.Context, assetID string) error {
		releaseCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
		defer cancel()

		done := workerMetrics.TrackRelease()
		err := app.ReleaseAsset(releaseCtx, assetID)
		logger.Info("asset_release_handled", "asset_id", assetID, "outcome", done(err))
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
