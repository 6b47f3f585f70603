package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

type ScanService struct {
	repo     ports.ScanRepository
	assets   ports.AssetStore
	releases ports.AssetReleaseQueue
	observer ports.DetectionObserver
	now      func() time.Time
}

// NewScanService wires history operations. releases may be nil, in which case
// failed asset releases are only logged.
func NewScanService(
	repo ports.ScanRepository,
	assets ports.AssetStore,
	releases ports.AssetReleaseQueue,
	observer ports.DetectionObserver,
) *ScanService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ScanService{
		repo:     repo,
		assets:   assets,
		releases: releases,
		observer: observer,
		now:      time.Now,
	}
}

func (s *ScanService) List(ctx context.Context, ownerID string, filter domain.ScanFilter) (*domain.ScanPage, error) {
	ownerID, err := requireOwner(ownerID, "list scans")
	if err != nil {
		return nil, err
	}
	filter = filter.Normalize()

	scans, total, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	if scans == nil {
		scans = []domain.ScanRecord{}
	}
	return &domain.ScanPage{
		Scans:  scans,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func (s *ScanService) Stats(ctx context.Context, ownerID string) (domain.ScanStats, error) {
	ownerID, err := requireOwner(ownerID, "scan stats")
	if err != nil {
		return domain.EmptyScanStats(), err
	}
	records, err := s.repo.ListAll(ctx, ownerID)
	if err != nil {
		return domain.EmptyScanStats(), fmt.Errorf("load scans for stats: %w", err)
	}
	return domain.ComputeScanStats(records, s.now()), nil
}

// Delete removes an owner's scan. Releasing the stored image is best effort
// and never blocks the record deletion.
func (s *ScanService) Delete(ctx context.Context, ownerID, scanID string) error {
	ownerID, err := requireOwner(ownerID, "delete scan")
	if err != nil {
		return err
	}
	scanID = strings.TrimSpace(scanID)
	if scanID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete scan", errors.New("scan id is required"))
	}

	scan, err := s.repo.Get(ctx, ownerID, scanID)
	if err != nil {
		return err
	}

	if assetID := strings.TrimSpace(scan.Image.AssetID); assetID != "" {
		s.releaseAsset(ctx, scanID, assetID)
	}

	return s.repo.Delete(ctx, ownerID, scanID)
}

func (s *ScanService) releaseAsset(ctx context.Context, scanID, assetID string) {
	if s.assets == nil {
		return
	}
	err := s.assets.Delete(ctx, assetID)
	if err == nil {
		return
	}

	s.observer.ObserveAssetReleaseFailure()
	slog.Warn("asset_release_failed", "scan_id", scanID, "asset_id", assetID, "error", err)
	if s.releases == nil {
		return
	}
	if pubErr := s.releases.PublishAssetRelease(ctx, assetID); pubErr != nil {
		slog.Error("asset_release_enqueue_failed", "scan_id", scanID, "asset_id", assetID, "error", pubErr)
	}
}

// ReleaseAsset deletes a stored image on behalf of the retry worker.
func (s *ScanService) ReleaseAsset(ctx context.Context, assetID string) error {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "release asset", errors.New("asset id is required"))
	}
	if s.assets == nil {
		return nil
	}
	return s.assets.Delete(ctx, assetID)
}

func requireOwner(ownerID, operation string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, operation, errors.New("missing owner identity"))
	}
	return ownerID, nil
}
