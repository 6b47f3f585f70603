package reference

import (
	"strings"
	"testing"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

func mustLoad(t *testing.T) *Store {
	t.Helper()
	store, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return store
}

func TestLoadEmbeddedTable(t *testing.T) {
	store := mustLoad(t)
	if got := len(store.All()); got != 10 {
		t.Fatalf("expected 10 profiles, got %d", got)
	}
	healthy, ok := store.Lookup(domain.HealthyPlant)
	if !ok {
		t.Fatalf("expected Healthy Plant entry")
	}
	if healthy.Crop != domain.AllCrops || healthy.Severity != domain.SeverityNone {
		t.Fatalf("unexpected healthy profile %#v", healthy)
	}
}

func TestLookupFallsBackToCaseInsensitive(t *testing.T) {
	store := mustLoad(t)
	profile, ok := store.Lookup("early blight")
	if !ok || profile.Name != "Early Blight" {
		t.Fatalf("expected Early Blight, got %#v ok=%v", profile, ok)
	}
	if profile.ScientificName != "Alternaria solani" {
		t.Fatalf("unexpected scientific name %q", profile.ScientificName)
	}
	if _, ok := store.Lookup("Root Rot"); ok {
		t.Fatalf("expected unknown disease to miss")
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	store := mustLoad(t)
	first, _ := store.Lookup("Late Blight")
	first.Treatment[0] = "mutated"

	second, _ := store.Lookup("Late Blight")
	if second.Treatment[0] == "mutated" {
		t.Fatalf("store must not share slices with callers")
	}
}

func TestByCropIncludesWildcard(t *testing.T) {
	store := mustLoad(t)
	apple := store.ByCrop("Apple")
	if len(apple) != 1 || apple[0].Name != domain.HealthyPlant {
		t.Fatalf("expected only the wildcard profile for Apple, got %d", len(apple))
	}
	if got := len(store.ByCrop("Tomato")); got != 10 {
		t.Fatalf("expected 10 tomato profiles, got %d", got)
	}
}

func TestSearchMatchesSymptoms(t *testing.T) {
	store := mustLoad(t)
	results := store.Search("CONCENTRIC")
	if len(results) == 0 {
		t.Fatalf("expected symptom search hit")
	}
	for _, p := range results {
		hit := strings.Contains(strings.ToLower(p.Name+p.Description+strings.Join(p.Symptoms, " ")), "concentric")
		if !hit {
			t.Fatalf("unexpected result %q", p.Name)
		}
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	raw := []byte(`diseases:
  - name: "Healthy Plant"
    crop: "All"
    severity: "None"
  - name: "healthy plant"
    crop: "All"
    severity: "None"
`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestParseRequiresHealthyPlant(t *testing.T) {
	raw := []byte(`diseases:
  - name: "Leaf Mold"
    crop: "Tomato"
    severity: "Mild"
`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected missing healthy entry error")
	}
}
