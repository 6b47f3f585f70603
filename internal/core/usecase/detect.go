package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cropguard/internal/core/crops"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const DefaultPlaceholderImageURL = "https://via.placeholder.com/400x300?text=Image+Upload+Failed"

type DetectConfig struct {
	Budget              time.Duration
	MaxUploadBytes      int
	PlaceholderImageURL string
}

func (c DetectConfig) normalize() DetectConfig {
	out := c
	if out.Budget <= 0 {
		out.Budget = 30 * time.Second
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = domain.MaxUploadBytes
	}
	if strings.TrimSpace(out.PlaceholderImageURL) == "" {
		out.PlaceholderImageURL = DefaultPlaceholderImageURL
	}
	return out
}

// DetectUseCase runs one upload through validation, classification,
// enrichment and persistence.
type DetectUseCase struct {
	cfg       DetectConfig
	images    ports.ImageProcessor
	gate      *PlantGate
	cascade   *Cascade
	reference ports.DiseaseReference
	assets    ports.AssetStore
	repo      ports.ScanRepository
	observer  ports.DetectionObserver

	now   func() time.Time
	newID func() string
}

func NewDetectUseCase(
	cfg DetectConfig,
	images ports.ImageProcessor,
	gate *PlantGate,
	cascade *Cascade,
	reference ports.DiseaseReference,
	assets ports.AssetStore,
	repo ports.ScanRepository,
	observer ports.DetectionObserver,
) *DetectUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if gate == nil {
		gate = NewPlantGate(nil, observer)
	}
	return &DetectUseCase{
		cfg:       cfg.normalize(),
		images:    images,
		gate:      gate,
		cascade:   cascade,
		reference: reference,
		assets:    assets,
		repo:      repo,
		observer:  observer,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (uc *DetectUseCase) Detect(ctx context.Context, req ports.DetectRequest) (*ports.DetectionOutcome, error) {
	start := uc.now()
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "detect", errors.New("missing owner identity"))
	}
	mediaType, err := uc.validateUpload(req)
	if err != nil {
		return nil, err
	}

	cropType := strings.TrimSpace(req.CropType)
	if cropType == "" {
		cropType = crops.DefaultCrop
	}
	cropType = crops.Normalize(cropType)

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Budget)
	defer cancel()

	img, err := uc.normalizeImage(req.Data, mediaType)
	if err != nil {
		return nil, err
	}

	validation := uc.gate.Check(ctx, img)
	if !validation.IsPlant {
		return nil, domain.WrapError(domain.ErrInvalidInput, "detect", &domain.NotPlantError{Validation: validation})
	}

	detectedCrop := ""
	if !validation.Unverified {
		detectedCrop = validation.DetectedCrop
	}
	verdict := crops.MatchCropTypes(cropType, detectedCrop)
	if !verdict.Matches {
		return nil, domain.WrapError(domain.ErrInvalidInput, "detect", &domain.CropMismatchError{Verdict: verdict})
	}

	result, err := uc.cascade.Detect(ctx, img, cropType)
	if err != nil {
		return nil, err
	}

	profile, ok := uc.reference.Lookup(result.Disease)
	if !ok {
		return nil, domain.WrapError(domain.ErrDiseaseNotFound, "detect", fmt.Errorf("classifier reported %q via %s", result.Disease, result.Stage))
	}

	scanID := uc.newID()
	imageRef := uc.uploadImage(ctx, scanID, img)
	if err := budgetErr(ctx); err != nil {
		return nil, err
	}

	// Past this point the scan may be in history, so the outcome is returned
	// even if the budget runs out during the write.
	scan := domain.NewScanRecord(scanID, ownerID, cropType, result, profile, imageRef, uc.now())
	persisted := true
	if err := uc.repo.Create(ctx, scan); err != nil {
		persisted = false
		slog.Error("scan_persist_failed", "scan_id", scanID, "owner_id", ownerID, "disease", scan.Disease, "error", err)
	}

	uc.observer.ObserveDetection(result.Stage, uc.now().Sub(start).Seconds())
	return &ports.DetectionOutcome{
		Scan:       *scan,
		Detection:  result,
		Profile:    profile,
		CropMatch:  verdict,
		Validation: validation,
		Persisted:  persisted,
	}, nil
}

func (uc *DetectUseCase) validateUpload(req ports.DetectRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "detect", errors.New("image is required"))
	}
	mediaType, ok := domain.CanonicalMediaType(req.MediaType)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "detect", fmt.Errorf("unsupported image type %q: use JPEG, PNG, WebP, GIF, BMP or TIFF", req.MediaType))
	}
	if len(req.Data) > uc.cfg.MaxUploadBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "detect", fmt.Errorf("image is %d bytes, limit is %d", len(req.Data), uc.cfg.MaxUploadBytes))
	}
	return mediaType, nil
}

// normalizeImage falls back to the original bytes when they cannot be
// re-encoded, but rejects uploads the normalizer refuses as invalid input.
func (uc *DetectUseCase) normalizeImage(data []byte, mediaType string) (domain.Image, error) {
	original := domain.Image{Data: data, MediaType: mediaType}
	if uc.images == nil {
		return original, nil
	}
	img, err := uc.images.Normalize(data, mediaType)
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return domain.Image{}, err
	}
	if err != nil {
		slog.Warn("image_normalize_failed", "media_type", mediaType, "bytes", len(data), "error", err)
		return original, nil
	}
	return img, nil
}

func (uc *DetectUseCase) uploadImage(ctx context.Context, scanID string, img domain.Image) domain.ImageRef {
	if uc.assets == nil {
		return domain.ImageRef{URL: uc.cfg.PlaceholderImageURL}
	}
	ref, err := uc.assets.Upload(ctx, scanID, img)
	if err != nil {
		slog.Error("image_upload_failed", "scan_id", scanID, "error", err)
		return domain.ImageRef{URL: uc.cfg.PlaceholderImageURL}
	}
	return ref
}

func budgetErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, "detect", ctx.Err())
	}
	return nil
}
