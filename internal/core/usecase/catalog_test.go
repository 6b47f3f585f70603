package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/infrastructure/reference"
)

func newCatalog(t *testing.T, repo *memRepo) *CatalogService {
	t.Helper()
	store, err := reference.Load()
	if err != nil {
		t.Fatalf("reference.Load() error = %v", err)
	}
	return NewCatalogService(store, repo)
}

func TestListDiseasesSortsBySeverityDescending(t *testing.T) {
	svc := newCatalog(t, newMemRepo())
	got, err := svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{Sort: "severity"})
	if err != nil {
		t.Fatalf("ListDiseases() error = %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Severity.Rank() < got[i].Severity.Rank() {
			t.Fatalf("severity order broken at %d: %s before %s", i, got[i-1].Severity, got[i].Severity)
		}
	}
	if got[len(got)-1].Name != domain.HealthyPlant {
		t.Fatalf("expected Healthy Plant last, got %q", got[len(got)-1].Name)
	}
}

func TestListDiseasesDefaultsToName(t *testing.T) {
	svc := newCatalog(t, newMemRepo())
	got, _ := svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{})
	if got[0].Name != "Bacterial Spot" {
		t.Fatalf("expected alphabetical order, got %q first", got[0].Name)
	}
}

func TestListDiseasesSearchAndCropFilter(t *testing.T) {
	svc := newCatalog(t, newMemRepo())
	got, _ := svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{Search: "mildew"})
	if len(got) != 1 || got[0].Name != "Powdery Mildew" {
		t.Fatalf("unexpected search result %#v", got)
	}
	got, _ = svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{Crop: "apples"})
	if len(got) != 1 || got[0].Name != domain.HealthyPlant {
		t.Fatalf("expected wildcard only for apples, got %d", len(got))
	}
}

func TestListDiseasesByOwnerFrequency(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(
		domain.ScanRecord{ID: "1", OwnerID: "u", Disease: "Leaf Mold", CreatedAt: now.Add(-3 * time.Hour)},
		domain.ScanRecord{ID: "2", OwnerID: "u", Disease: "Leaf Mold", CreatedAt: now.Add(-2 * time.Hour)},
		domain.ScanRecord{ID: "3", OwnerID: "u", Disease: "Target Spot", CreatedAt: now.Add(-1 * time.Hour)},
		domain.ScanRecord{ID: "4", OwnerID: "other", Disease: "Mosaic Virus", CreatedAt: now},
	)
	svc := newCatalog(t, repo)

	byFreq, err := svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{Sort: "frequency"})
	if err != nil {
		t.Fatalf("ListDiseases() error = %v", err)
	}
	if byFreq[0].Name != "Leaf Mold" || byFreq[1].Name != "Target Spot" {
		t.Fatalf("unexpected frequency order %q, %q", byFreq[0].Name, byFreq[1].Name)
	}

	byRecent, _ := svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{Sort: "recent"})
	if byRecent[0].Name != "Target Spot" || byRecent[1].Name != "Leaf Mold" {
		t.Fatalf("unexpected recency order %q, %q", byRecent[0].Name, byRecent[1].Name)
	}
}

func TestListDiseasesRejectsUnknownSort(t *testing.T) {
	svc := newCatalog(t, newMemRepo())
	if _, err := svc.ListDiseases(context.Background(), "u", ports.DiseaseQuery{Sort: "price"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
