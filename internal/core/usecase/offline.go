package usecase

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const (
	OfflineStageName    = "offline"
	offlinePerturbation = 0.05
)

type offlineCandidate struct {
	disease    string
	confidence float64
	severity   domain.Severity
}

var offlineCandidates = map[string][]offlineCandidate{
	"Tomato": {
		{"Early Blight", 0.75, domain.SeverityModerate},
		{"Late Blight", 0.72, domain.SeveritySevere},
		{"Septoria Leaf Spot", 0.74, domain.SeverityModerate},
		{"Bacterial Spot", 0.70, domain.SeverityModerate},
		{domain.HealthyPlant, 0.80, domain.SeverityNone},
	},
	"Potato": {
		{"Early Blight", 0.74, domain.SeverityModerate},
		{"Late Blight", 0.76, domain.SeveritySevere},
		{domain.HealthyPlant, 0.80, domain.SeverityNone},
	},
	"Pepper": {
		{"Bacterial Spot", 0.73, domain.SeverityModerate},
		{"Powdery Mildew", 0.70, domain.SeverityModerate},
		{domain.HealthyPlant, 0.80, domain.SeverityNone},
	},
	"Cucumber": {
		{"Powdery Mildew", 0.74, domain.SeverityModerate},
		{"Mosaic Virus", 0.68, domain.SeveritySevere},
		{domain.HealthyPlant, 0.80, domain.SeverityNone},
	},
}

var defaultOfflineCandidates = []offlineCandidate{
	{"Powdery Mildew", 0.68, domain.SeverityModerate},
	{"Leaf Mold", 0.66, domain.SeverityMild},
	{domain.HealthyPlant, 0.78, domain.SeverityNone},
}

// OfflineStage answers from a crop-specific candidate list without any
// network call. Every candidate name exists in the disease table.
type OfflineStage struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewOfflineStage builds the stage; a nil source seeds from the clock.
func NewOfflineStage(src rand.Source) *OfflineStage {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	return &OfflineStage{rnd: rand.New(src)}
}

func (s *OfflineStage) Name() string {
	return OfflineStageName
}

func (s *OfflineStage) Detect(_ context.Context, _ domain.Image, cropType string) (domain.DetectionResult, error) {
	candidates, ok := offlineCandidates[cropType]
	if !ok {
		candidates = defaultOfflineCandidates
	}

	s.mu.Lock()
	pick := candidates[s.rnd.IntN(len(candidates))]
	jitter := (s.rnd.Float64()*2 - 1) * offlinePerturbation
	s.mu.Unlock()

	symptoms, recommendation := domain.LabelHints(pick.disease)
	return domain.DetectionResult{
		Disease:        pick.disease,
		Confidence:     domain.NormalizeConfidence(pick.confidence + jitter),
		Severity:       pick.severity,
		Symptoms:       symptoms,
		Recommendation: recommendation,
		CropAnalysis:   "Automated analysis was unavailable; this estimate is based on common " + cropType + " conditions.",
		Stage:          OfflineStageName,
	}, nil
}
