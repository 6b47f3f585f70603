package reference

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

//go:embed diseases.yaml
var diseasesYAML []byte

// Store is the read-only disease table. It is built once at startup and
// shared by reference; callers only ever receive copies.
type Store struct {
	profiles []domain.DiseaseProfile
	byName   map[string]int
	byFold   map[string]int
}

type document struct {
	Diseases []domain.DiseaseProfile `yaml:"diseases"`
}

// Load parses the embedded disease table.
func Load() (*Store, error) {
	return Parse(diseasesYAML)
}

func Parse(raw []byte) (*Store, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse disease table: %w", err)
	}

	s := &Store{
		profiles: make([]domain.DiseaseProfile, 0, len(doc.Diseases)),
		byName:   make(map[string]int, len(doc.Diseases)),
		byFold:   make(map[string]int, len(doc.Diseases)),
	}
	for _, p := range doc.Diseases {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("disease table: entry without name")
		}
		if !p.Severity.Valid() {
			return nil, fmt.Errorf("disease table: %q has invalid severity %q", p.Name, p.Severity)
		}
		fold := strings.ToLower(p.Name)
		if _, dup := s.byFold[fold]; dup {
			return nil, fmt.Errorf("disease table: duplicate entry %q", p.Name)
		}
		s.byName[p.Name] = len(s.profiles)
		s.byFold[fold] = len(s.profiles)
		s.profiles = append(s.profiles, p.Clone())
	}
	if _, ok := s.byName[domain.HealthyPlant]; !ok {
		return nil, fmt.Errorf("disease table: missing %q entry", domain.HealthyPlant)
	}
	return s, nil
}

// Lookup resolves a classifier label. Exact names win; otherwise the match is
// case-insensitive.
func (s *Store) Lookup(name string) (domain.DiseaseProfile, bool) {
	name = strings.TrimSpace(name)
	if idx, ok := s.byName[name]; ok {
		return s.profiles[idx].Clone(), true
	}
	if idx, ok := s.byFold[strings.ToLower(name)]; ok {
		return s.profiles[idx].Clone(), true
	}
	return domain.DiseaseProfile{}, false
}

func (s *Store) All() []domain.DiseaseProfile {
	return s.filter(func(domain.DiseaseProfile) bool { return true })
}

// ByCrop returns profiles for crop plus the crop-agnostic ones.
func (s *Store) ByCrop(crop string) []domain.DiseaseProfile {
	return s.filter(func(p domain.DiseaseProfile) bool {
		return p.Crop == crop || p.Crop == domain.AllCrops
	})
}

// Search matches query against name, description and symptoms.
func (s *Store) Search(query string) []domain.DiseaseProfile {
	q := strings.ToLower(query)
	return s.filter(func(p domain.DiseaseProfile) bool {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			return true
		}
		for _, symptom := range p.Symptoms {
			if strings.Contains(strings.ToLower(symptom), q) {
				return true
			}
		}
		return false
	})
}

// Names returns the disease names classifiers are allowed to report.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Name)
	}
	return out
}

func (s *Store) filter(keep func(domain.DiseaseProfile) bool) []domain.DiseaseProfile {
	out := make([]domain.DiseaseProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}
