package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/crops"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const (
	SortByName      = "name"
	SortBySeverity  = "severity"
	SortByCrop      = "crop"
	SortByFrequency = "frequency"
	SortByRecent    = "recent"
)

// CatalogService serves the disease table and crop helpers. Frequency and
// recency ordering use the caller's own scans.
type CatalogService struct {
	reference ports.DiseaseReference
	repo      ports.ScanRepository
}

func NewCatalogService(reference ports.DiseaseReference, repo ports.ScanRepository) *CatalogService {
	return &CatalogService{reference: reference, repo: repo}
}

func (s *CatalogService) ListDiseases(ctx context.Context, ownerID string, query ports.DiseaseQuery) ([]domain.DiseaseProfile, error) {
	var profiles []domain.DiseaseProfile
	switch {
	case strings.TrimSpace(query.Search) != "":
		profiles = s.reference.Search(strings.TrimSpace(query.Search))
	case strings.TrimSpace(query.Crop) != "" && !strings.EqualFold(strings.TrimSpace(query.Crop), domain.AllCrops):
		profiles = s.reference.ByCrop(crops.Normalize(query.Crop))
	default:
		profiles = s.reference.All()
	}

	mode := strings.ToLower(strings.TrimSpace(query.Sort))
	switch mode {
	case "", SortByName:
		sort.SliceStable(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	case SortBySeverity:
		sort.SliceStable(profiles, func(i, j int) bool {
			ri, rj := profiles[i].Severity.Rank(), profiles[j].Severity.Rank()
			if ri != rj {
				return ri > rj
			}
			return profiles[i].Name < profiles[j].Name
		})
	case SortByCrop:
		sort.SliceStable(profiles, func(i, j int) bool {
			if profiles[i].Crop != profiles[j].Crop {
				return profiles[i].Crop < profiles[j].Crop
			}
			return profiles[i].Name < profiles[j].Name
		})
	case SortByFrequency, SortByRecent:
		if err := s.sortByHistory(ctx, ownerID, mode, profiles); err != nil {
			return nil, err
		}
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "list diseases", fmt.Errorf("unknown sort %q", query.Sort))
	}
	return profiles, nil
}

func (s *CatalogService) sortByHistory(ctx context.Context, ownerID, mode string, profiles []domain.DiseaseProfile) error {
	ownerID, err := requireOwner(ownerID, "list diseases")
	if err != nil {
		return err
	}
	records, err := s.repo.ListAll(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load scans for disease ordering: %w", err)
	}

	counts := make(map[string]int)
	latest := make(map[string]time.Time)
	for _, rec := range records {
		key := strings.ToLower(rec.Disease)
		counts[key]++
		if rec.CreatedAt.After(latest[key]) {
			latest[key] = rec.CreatedAt
		}
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		ki, kj := strings.ToLower(profiles[i].Name), strings.ToLower(profiles[j].Name)
		if mode == SortByFrequency {
			if counts[ki] != counts[kj] {
				return counts[ki] > counts[kj]
			}
		} else if !latest[ki].Equal(latest[kj]) {
			return latest[ki].After(latest[kj])
		}
		return profiles[i].Name < profiles[j].Name
	})
	return nil
}

func (s *CatalogService) Suggestions(partial string) []string {
	return crops.Suggestions(partial)
}

func (s *CatalogService) ValidateCrop(name string) domain.CropNameCheck {
	return crops.ValidateCustomCrop(name)
}
