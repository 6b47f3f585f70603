package domain

import (
	"strings"
	"time"
)

const (
	DefaultScanLimit = 50
	MaxScanLimit     = 100
)

type ImageRef struct {
	URL     string `json:"url" bson:"url"`
	AssetID string `json:"asset_id,omitempty" bson:"assetId,omitempty"`
}

// ScanRecord is the durable history entry for one detection. Descriptive
// fields are copied from the disease profile at creation time.
type ScanRecord struct {
	ID               string    `json:"id" bson:"_id"`
	OwnerID          string    `json:"owner_id" bson:"ownerId"`
	Image            ImageRef  `json:"image" bson:"image"`
	CropType         string    `json:"crop_type" bson:"cropType"`
	Disease          string    `json:"disease" bson:"diseaseDetected"`
	Confidence       float64   `json:"confidence" bson:"confidence"`
	Severity         Severity  `json:"severity" bson:"severity"`
	Symptoms         []string  `json:"symptoms" bson:"symptoms"`
	Treatment        []string  `json:"treatment" bson:"treatment"`
	Prevention       []string  `json:"prevention" bson:"prevention"`
	OrganicTreatment []string  `json:"organic_treatment" bson:"organicTreatment"`
	CostEstimate     string    `json:"cost_estimate" bson:"costEstimate"`
	ScientificName   string    `json:"scientific_name" bson:"scientificName"`
	CreatedAt        time.Time `json:"created_at" bson:"createdAt"`
}

// NewScanRecord snapshots profile facts onto a new record.
func NewScanRecord(id, ownerID, cropType string, detection DetectionResult, profile DiseaseProfile, image ImageRef, now time.Time) *ScanRecord {
	snapshot := profile.Clone()
	return &ScanRecord{
		ID:               id,
		OwnerID:          ownerID,
		Image:            image,
		CropType:         cropType,
		Disease:          profile.Name,
		Confidence:       detection.Confidence,
		Severity:         detection.Severity,
		Symptoms:         snapshot.Symptoms,
		Treatment:        snapshot.Treatment,
		Prevention:       snapshot.Prevention,
		OrganicTreatment: snapshot.OrganicTreatment,
		CostEstimate:     snapshot.CostEstimate,
		ScientificName:   snapshot.ScientificName,
		CreatedAt:        now.UTC(),
	}
}

type ScanFilter struct {
	Limit    int
	Offset   int
	CropType string
	Severity string
	Search   string
}

// Normalize clamps paging values and trims filter text.
func (f ScanFilter) Normalize() ScanFilter {
	out := f
	if out.Limit <= 0 {
		out.Limit = DefaultScanLimit
	}
	if out.Limit > MaxScanLimit {
		out.Limit = MaxScanLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	out.CropType = strings.TrimSpace(out.CropType)
	out.Severity = strings.TrimSpace(out.Severity)
	out.Search = strings.TrimSpace(out.Search)
	return out
}

type ScanPage struct {
	Scans  []ScanRecord `json:"scans"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
