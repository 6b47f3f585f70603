package domain

// CropMatchVerdict is computed once per upload and gates analysis.
type CropMatchVerdict struct {
	Matches      bool    `json:"matches"`
	SelectedCrop string  `json:"selected_crop"`
	DetectedCrop string  `json:"detected_crop"`
	Confidence   float64 `json:"confidence"`
	Message      string  `json:"message"`
}

// PlantValidation is the plant gate outcome. Confidence is on a 0..100 scale.
type PlantValidation struct {
	IsPlant      bool     `json:"is_plant"`
	DetectedCrop string   `json:"detected_crop,omitempty"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Unverified   bool     `json:"unverified,omitempty"`
	Note         string   `json:"note,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

type CropNameStatus string

const (
	CropNameExact   CropNameStatus = "exact"
	CropNameSimilar CropNameStatus = "similar"
	CropNameCustom  CropNameStatus = "custom"
	CropNameInvalid CropNameStatus = "invalid"
)

type CropNameCheck struct {
	Status      CropNameStatus `json:"status"`
	Canonical   string         `json:"canonical,omitempty"`
	Suggestions []string       `json:"suggestions"`
	Message     string         `json:"message"`
}
