package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/cropguard/internal/adapters/http"
	"github.com/kirillkom/cropguard/internal/bootstrap"
	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi_invalid", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.AuthJWTSecret) == "" {
		logger.Warn("auth_secret_missing", "effect", "every /v1 request will be rejected")
	}

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.DetectUC, app.Scans, app.Catalog, app.Catalog, app.Metrics).
		ReportBreakers(app.Executor.OpenOperations)
	if app.AssetsDir != "" && strings.HasPrefix(cfg.AssetPublicBaseURL, "/") {
		router.ServeAssets(cfg.AssetPublicBaseURL, app.AssetsDir)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Duration(cfg.DetectTimeoutSeconds+30) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening",
			"addr", server.Addr,
			"storage_backend", cfg.StorageBackend,
			"asset_backend", cfg.AssetBackend,
			"stages", app.Stages,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
