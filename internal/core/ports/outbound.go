package ports

import (
	"context"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// ScanRepository persists scan records. Every read and delete is scoped to
// the owner; a record of another owner behaves as missing.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.ScanRecord) error
	Get(ctx context.Context, ownerID, scanID string) (*domain.ScanRecord, error)
	List(ctx context.Context, ownerID string, filter domain.ScanFilter) ([]domain.ScanRecord, int, error)
	ListAll(ctx context.Context, ownerID string) ([]domain.ScanRecord, error)
	Delete(ctx context.Context, ownerID, scanID string) error
}

// AssetStore keeps uploaded images and hands back a public URL.
type AssetStore interface {
	Upload(ctx context.Context, key string, img domain.Image) (domain.ImageRef, error)
	Delete(ctx context.Context, assetID string) error
}

// AssetReleaseQueue defers asset deletions that failed inline.
type AssetReleaseQueue interface {
	PublishAssetRelease(ctx context.Context, assetID string) error
	SubscribeAssetRelease(ctx context.Context, handler func(context.Context, string) error) error
}

// ClassifierStage is one provider attempt in the detection cascade.
type ClassifierStage interface {
	Name() string
	Detect(ctx context.Context, img domain.Image, cropType string) (domain.DetectionResult, error)
}

// PlantValidator asks a vision model whether the image shows a plant.
type PlantValidator interface {
	Validate(ctx context.Context, img domain.Image) (domain.PlantValidation, error)
}

// ImageProcessor downsizes and re-encodes uploads before classification.
type ImageProcessor interface {
	Normalize(data []byte, mediaType string) (domain.Image, error)
}

// DiseaseReference is the read-only disease table.
type DiseaseReference interface {
	Lookup(name string) (domain.DiseaseProfile, bool)
	All() []domain.DiseaseProfile
	ByCrop(crop string) []domain.DiseaseProfile
	Search(query string) []domain.DiseaseProfile
}

// DetectionObserver receives detection telemetry.
type DetectionObserver interface {
	ObserveStage(stage, outcome string)
	ObserveValidatorFailOpen()
	ObserveDetection(stage string, seconds float64)
	ObserveAssetReleaseFailure()
}
