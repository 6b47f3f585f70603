package ports

import (
	"context"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// DetectRequest is one upload to analyze on behalf of OwnerID.
type DetectRequest struct {
	OwnerID   string
	CropType  string
	MediaType string
	Data      []byte
}

// DetectionOutcome is what the caller receives for a completed detection.
type DetectionOutcome struct {
	Scan       domain.ScanRecord
	Detection  domain.DetectionResult
	Profile    domain.DiseaseProfile
	CropMatch  domain.CropMatchVerdict
	Validation domain.PlantValidation
	Persisted  bool
}

// DiseaseDetector is the inbound contract for the detect-and-persist flow.
type DiseaseDetector interface {
	Detect(ctx context.Context, req DetectRequest) (*DetectionOutcome, error)
}

// ScanHistory is the inbound contract for an owner's scan records.
type ScanHistory interface {
	List(ctx context.Context, ownerID string, filter domain.ScanFilter) (*domain.ScanPage, error)
	Stats(ctx context.Context, ownerID string) (domain.ScanStats, error)
	Delete(ctx context.Context, ownerID, scanID string) error
}

type DiseaseQuery struct {
	Search string
	Crop   string
	Sort   string
}

// DiseaseCatalog serves the reference table to clients.
type DiseaseCatalog interface {
	ListDiseases(ctx context.Context, ownerID string, query DiseaseQuery) ([]domain.DiseaseProfile, error)
}

// CropAdvisor backs crop autocomplete and custom crop checks.
type CropAdvisor interface {
	Suggestions(partial string) []string
	ValidateCrop(name string) domain.CropNameCheck
}
