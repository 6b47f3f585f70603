package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/core/usecase"
	"github.com/kirillkom/cropguard/internal/infrastructure/assets/cloudinary"
	"github.com/kirillkom/cropguard/internal/infrastructure/assets/localfs"
	"github.com/kirillkom/cropguard/internal/infrastructure/imaging"
	"github.com/kirillkom/cropguard/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cropguard/internal/infrastructure/reference"
	mongorepo "github.com/kirillkom/cropguard/internal/infrastructure/repository/mongo"
	"github.com/kirillkom/cropguard/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision/groq"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision/huggingface"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision/ollama"
	"github.com/kirillkom/cropguard/internal/observability/metrics"
)

const assetReleaseOperation = "asset.release"

type App struct {
	Config config.Config

	Metrics  *metrics.HTTPServerMetrics
	Executor *resilience.Executor
	Queue    *nats.Queue

	DetectUC  *usecase.DetectUseCase
	Scans     *usecase.ScanService
	Catalog   *usecase.CatalogService
	Stages    []string
	AssetsDir string

	closeFn func()
}

// New wires every adapter for one process. service labels metrics and logs.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	httpMetrics := metrics.NewHTTPServerMetrics(service)
	observer := httpMetrics.Detection(service)

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.RetryMaxAttempts = cfg.ProviderRetryMaxAttempts
	resilienceCfg.BreakerEnabled = cfg.ProviderBreakerEnabled
	resilienceCfg.OnStateChange = func(operation, from, to string) {
		httpMetrics.RecordBreakerTransition(service, operation, to)
	}
	executor := resilience.NewExecutor(resilienceCfg)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeRepo)

	assets, assetsDir, err := openAssetStore(cfg)
	if err != nil {
		closeAll()
		return nil, err
	}

	var queue *nats.Queue
	var releases ports.AssetReleaseQueue
	if strings.TrimSpace(cfg.NATSURL) != "" {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSAssetReleaseSubject, nats.Options{
			MaxDeliveries:      cfg.NATSMaxDeliveries,
			RedeliveryBackoff:  time.Duration(cfg.NATSRedeliveryBackoffMS) * time.Millisecond,
			ResilienceExecutor: executor,
			ClientName:         "cropguard-" + service,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init asset release queue: %w", err)
		}
		releases = queue
		closers = append(closers, queue.Close)
	} else {
		slog.Warn("asset_release_queue_disabled", "reason", "NATS_URL is empty")
	}

	refs, err := reference.Load()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load disease reference: %w", err)
	}

	stages, err := buildStages(cfg, executor, refs.Names())
	if err != nil {
		closeAll()
		return nil, err
	}

	var validator ports.PlantValidator
	if strings.TrimSpace(cfg.GroqAPIKey) != "" {
		validator = groq.NewValidator(groq.New(cfg.GroqBaseURL, cfg.GroqAPIKey, executor), cfg.GroqValidatorModel)
	} else {
		slog.Warn("plant_validator_disabled", "reason", "GROQ_API_KEY is empty")
	}

	cascade := usecase.NewCascade(
		stages,
		usecase.NewOfflineStage(nil),
		time.Duration(cfg.StageTimeoutSeconds)*time.Second,
		observer,
	)
	detectUC := usecase.NewDetectUseCase(
		usecase.DetectConfig{
			Budget:              time.Duration(cfg.DetectTimeoutSeconds) * time.Second,
			MaxUploadBytes:      int(cfg.MaxUploadBytes),
			PlaceholderImageURL: cfg.PlaceholderImageURL,
		},
		imaging.NewNormalizer(cfg.MaxImageDimension, cfg.JPEGQuality, cfg.MaxImagePixels),
		usecase.NewPlantGate(validator, observer),
		cascade,
		refs,
		assets,
		repo,
		observer,
	)

	return &App{
		Config:   cfg,
		Metrics:  httpMetrics,
		Executor: executor,
		Queue:    queue,

		DetectUC:  detectUC,
		Scans:     usecase.NewScanService(repo, assets, releases, observer),
		Catalog:   usecase.NewCatalogService(refs, repo),
		Stages:    cascade.StageNames(),
		AssetsDir: assetsDir,

		closeFn: closeAll,
	}, nil
}

func openRepository(ctx context.Context, cfg config.Config) (ports.ScanRepository, func(), error) {
	switch cfg.StorageBackend {
	case "", "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewScanRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() { _ = db.Close() }, nil
	case "mongo", "mongodb":
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		repo := mongorepo.NewScanRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

// openAssetStore returns the store and, for the local backend, the directory
// the API should serve files from.
func openAssetStore(cfg config.Config) (ports.AssetStore, string, error) {
	switch cfg.AssetBackend {
	case "", "localfs":
		storage, err := localfs.New(cfg.AssetStoragePath, cfg.AssetPublicBaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("init asset storage: %w", err)
		}
		return storage, storage.Dir(), nil
	case "cloudinary":
		store, err := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, "", fmt.Errorf("init cloudinary: %w", err)
		}
		return store, "", nil
	default:
		return nil, "", fmt.Errorf("unknown ASSET_BACKEND %q", cfg.AssetBackend)
	}
}

// buildStages turns CLASSIFIER_STAGES into remote stages. Providers without
// credentials are skipped so a missing key does not surface as a
// configuration error on every request.
func buildStages(cfg config.Config, executor *resilience.Executor, diseases []string) ([]ports.ClassifierStage, error) {
	stages := make([]ports.ClassifierStage, 0, len(cfg.ClassifierStages))
	seen := make(map[string]bool, len(cfg.ClassifierStages))
	for _, name := range cfg.ClassifierStages {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case groq.ProviderName:
			if strings.TrimSpace(cfg.GroqAPIKey) == "" {
				slog.Warn("classifier_stage_skipped", "stage", name, "reason", "GROQ_API_KEY is empty")
				continue
			}
			client := groq.New(cfg.GroqBaseURL, cfg.GroqAPIKey, executor)
			stages = append(stages, groq.NewStage(client, cfg.GroqVisionModel, diseases))
		case huggingface.ProviderName:
			if strings.TrimSpace(cfg.HuggingFaceAPIKey) == "" {
				slog.Warn("classifier_stage_skipped", "stage", name, "reason", "HUGGINGFACE_API_KEY is empty")
				continue
			}
			stages = append(stages, huggingface.NewStage(cfg.HuggingFaceBaseURL, cfg.HuggingFaceAPIKey, cfg.HuggingFaceModelID, executor))
		case ollama.ProviderName:
			client := ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, executor)
			stages = append(stages, ollama.NewStage(client, diseases))
		case usecase.OfflineStageName:
			// Always appended by the cascade.
		default:
			return nil, fmt.Errorf("unknown classifier stage %q", name)
		}
	}
	return stages, nil
}

// ReleaseAsset deletes a stored image for the release worker, retrying
// transient storage failures.
func (a *App) ReleaseAsset(ctx context.Context, assetID string) error {
	return a.Executor.Execute(ctx, assetReleaseOperation, func(callCtx context.Context) error {
		return a.Scans.ReleaseAsset(callCtx, assetID)
	}, classifyAssetRelease)
}

func classifyAssetRelease(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), domain.IsKind(err, domain.ErrInvalidInput):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
