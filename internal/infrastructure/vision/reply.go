// Package vision holds the prompt and reply contract shared by the
// chat-style vision providers (Groq and Ollama).
package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// DetectionReply is the JSON object the detection prompt asks for.
type DetectionReply struct {
	DiseaseDetected  string   `json:"disease_detected"`
	Confidence       *float64 `json:"confidence"`
	Severity         string   `json:"severity"`
	SymptomsObserved []string `json:"symptoms_observed"`
	Recommendation   string   `json:"recommendation"`
	CropAnalysis     string   `json:"crop_analysis"`
}

// ValidationReply is the JSON object the plant validation prompt asks for.
type ValidationReply struct {
	IsPlant    bool     `json:"isPlant"`
	CropType   *string  `json:"cropType"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// ParseDetection converts a model reply into a DetectionResult. Replies
// without a disease name or with a confidence outside [0,100] are rejected.
func ParseDetection(provider, raw string) (domain.DetectionResult, error) {
	var reply DetectionReply
	if err := json.Unmarshal([]byte(domain.ExtractJSONObject(raw)), &reply); err != nil {
		return domain.DetectionResult{}, domain.NewProviderReplyError(provider, raw, fmt.Errorf("parse detection json: %w", err))
	}
	if strings.TrimSpace(reply.DiseaseDetected) == "" {
		return domain.DetectionResult{}, domain.NewProviderReplyError(provider, raw, errors.New("missing disease_detected"))
	}
	if reply.Confidence == nil {
		return domain.DetectionResult{}, domain.NewProviderReplyError(provider, raw, errors.New("missing numeric confidence"))
	}
	if *reply.Confidence < 0 || *reply.Confidence > 100 {
		return domain.DetectionResult{}, domain.NewProviderReplyError(provider, raw, fmt.Errorf("confidence %v out of range", *reply.Confidence))
	}

	return domain.DetectionResult{
		Disease:        reply.DiseaseDetected,
		Confidence:     *reply.Confidence,
		Severity:       domain.Severity(strings.TrimSpace(reply.Severity)),
		Symptoms:       reply.SymptomsObserved,
		Recommendation: reply.Recommendation,
		CropAnalysis:   reply.CropAnalysis,
		Stage:          provider,
	}, nil
}

// ParseValidation converts a plant validation reply. The acceptance policy
// is applied by the caller.
func ParseValidation(provider, raw string) (domain.PlantValidation, error) {
	var reply ValidationReply
	if err := json.Unmarshal([]byte(domain.ExtractJSONObject(raw)), &reply); err != nil {
		return domain.PlantValidation{}, domain.NewProviderReplyError(provider, raw, fmt.Errorf("parse validation json: %w", err))
	}
	if reply.Confidence == nil {
		return domain.PlantValidation{}, domain.NewProviderReplyError(provider, raw, errors.New("missing numeric confidence"))
	}

	out := domain.PlantValidation{
		IsPlant:    reply.IsPlant,
		Confidence: *reply.Confidence,
		Reasoning:  strings.TrimSpace(reply.Reasoning),
	}
	if reply.CropType != nil {
		crop := strings.TrimSpace(*reply.CropType)
		if !strings.EqualFold(crop, "null") {
			out.DetectedCrop = crop
		}
	}
	return out, nil
}
