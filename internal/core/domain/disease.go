package domain

import "strings"

type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// Rank orders severities None < Mild < Moderate < Severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityNone:
		return 0
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return -1
	}
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// ParseSeverity coerces free text to a severity tier, defaulting to Moderate.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return SeverityNone
	case "mild", "low":
		return SeverityMild
	case "moderate", "medium":
		return SeverityModerate
	case "severe", "high":
		return SeveritySevere
	default:
		return SeverityModerate
	}
}

const (
	HealthyPlant = "Healthy Plant"
	AllCrops     = "All"
)

type DiseaseProfile struct {
	Name             string   `json:"name" yaml:"name"`
	Crop             string   `json:"crop" yaml:"crop"`
	Severity         Severity `json:"severity" yaml:"severity"`
	ScientificName   string   `json:"scientific_name" yaml:"scientific_name"`
	Description      string   `json:"description" yaml:"description"`
	Symptoms         []string `json:"symptoms" yaml:"symptoms"`
	Treatment        []string `json:"treatment" yaml:"treatment"`
	Prevention       []string `json:"prevention" yaml:"prevention"`
	OrganicTreatment []string `json:"organic_treatment" yaml:"organic_treatment"`
	CostEstimate     string   `json:"cost_estimate" yaml:"cost_estimate"`
}

// Clone returns a profile that shares no slices with p.
func (p DiseaseProfile) Clone() DiseaseProfile {
	out := p
	out.Symptoms = cloneStrings(p.Symptoms)
	out.Treatment = cloneStrings(p.Treatment)
	out.Prevention = cloneStrings(p.Prevention)
	out.OrganicTreatment = cloneStrings(p.OrganicTreatment)
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
