// Package huggingface classifies images through the Hugging Face inference
// API and maps model labels onto reference disease names.
package huggingface

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision"
)

const (
	ProviderName   = "huggingface"
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModelID = "google/vit-base-patch16-224"
)

// Classification is one entry of an image-classification reply.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Stage is the secondary classifier stage.
type Stage struct {
	baseURL    string
	apiKey     string
	modelID    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewStage(baseURL, apiKey, modelID string, executor *resilience.Executor) *Stage {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultModelID
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Stage{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		modelID:    strings.Trim(modelID, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (s *Stage) Name() string { return ProviderName }

func (s *Stage) Detect(ctx context.Context, img domain.Image, _ string) (domain.DetectionResult, error) {
	const operation = "huggingface.detect"
	if strings.TrimSpace(s.apiKey) == "" {
		return domain.DetectionResult{}, domain.WrapError(domain.ErrProviderConfig, operation, errors.New("hugging face api key is not set"))
	}

	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	var classes []Classification
	err := s.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		classes = nil
		return vision.Post(callCtx, s.httpClient, ProviderName, operation, s.baseURL+"/models/"+s.modelID, s.apiKey, mediaType, img.Data, &classes)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return domain.DetectionResult{}, resilience.WrapProviderError(operation, err)
	}
	if len(classes) == 0 {
		return domain.DetectionResult{}, domain.NewProviderReplyError(ProviderName, "[]", errors.New("no classifications"))
	}
	return FromClassifications(classes), nil
}

// FromClassifications turns the top-scoring label into a detection.
func FromClassifications(classes []Classification) domain.DetectionResult {
	sorted := append([]Classification(nil), classes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	top := sorted[0]

	label := strings.TrimSpace(top.Label)
	if label == "" {
		label = "unknown"
	}
	disease := MapLabel(label)

	severity := SeverityFromScore(top.Score)
	if disease == domain.HealthyPlant {
		severity = domain.SeverityNone
	}
	symptoms, recommendation := domain.LabelHints(label)

	return domain.DetectionResult{
		Disease:        disease,
		Confidence:     math.Round(top.Score*100) / 100,
		Severity:       severity,
		Symptoms:       symptoms,
		Recommendation: recommendation,
		Stage:          ProviderName,
	}
}

type synonym struct {
	key     string
	disease string
}

// Most specific keys come first so "late_blight" never resolves through
// "blight".
var synonyms = []synonym{
	{"healthy", domain.HealthyPlant},
	{"late_blight", "Late Blight"},
	{"late blight", "Late Blight"},
	{"early_blight", "Early Blight"},
	{"early blight", "Early Blight"},
	{"blight", "Early Blight"},
	{"septoria", "Septoria Leaf Spot"},
	{"bacterial", "Bacterial Spot"},
	{"mosaic", "Mosaic Virus"},
	{"powdery", "Powdery Mildew"},
	{"mildew", "Powdery Mildew"},
	{"curl", "Yellow Leaf Curl Virus"},
	{"target", "Target Spot"},
	{"spot", "Target Spot"},
	{"mold", "Leaf Mold"},
}

// MapLabel resolves a model label to a reference disease name by substring.
// Unmatched labels are title-cased word by word.
func MapLabel(label string) string {
	lower := strings.ToLower(label)
	for _, s := range synonyms {
		if strings.Contains(lower, s.key) {
			return s.disease
		}
	}

	words := strings.FieldsFunc(label, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

func SeverityFromScore(score float64) domain.Severity {
	switch {
	case score < 0.3:
		return domain.SeverityNone
	case score < 0.5:
		return domain.SeverityMild
	case score < 0.8:
		return domain.SeverityModerate
	default:
		return domain.SeveritySevere
	}
}
