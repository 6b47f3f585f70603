package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/cropguard/internal/core/crops"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const (
	plantConfidenceThreshold = 60
	failOpenConfidence       = 50
	failOpenNote             = "Could not validate image - proceeding with analysis"
)

var notPlantSuggestions = []string{
	"Upload a clear photo of the plant leaves or fruit",
	"Make sure the plant fills most of the frame",
	"Use natural light and avoid heavy shadows",
}

// PlantGate applies the acceptance policy on top of a PlantValidator and
// fails open whenever the validator cannot answer.
type PlantGate struct {
	validator ports.PlantValidator
	observer  ports.DetectionObserver
}

func NewPlantGate(validator ports.PlantValidator, observer ports.DetectionObserver) *PlantGate {
	if observer == nil {
		observer = noopObserver{}
	}
	return &PlantGate{validator: validator, observer: observer}
}

func (g *PlantGate) Check(ctx context.Context, img domain.Image) domain.PlantValidation {
	if g.validator == nil {
		return failOpen()
	}

	raw, err := g.validator.Validate(ctx, img)
	if err != nil {
		g.observer.ObserveValidatorFailOpen()
		slog.Warn("plant_validation_failed_open", "error", err)
		return failOpen()
	}

	confidence := raw.Confidence
	if confidence > 0 && confidence <= 1 {
		confidence *= 100
	}
	out := domain.PlantValidation{
		IsPlant:    raw.IsPlant && confidence > plantConfidenceThreshold,
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(raw.Reasoning),
	}
	if detected := strings.TrimSpace(raw.DetectedCrop); detected != "" && !strings.EqualFold(detected, "unknown") {
		out.DetectedCrop = crops.Normalize(detected)
	}
	if !out.IsPlant {
		out.Suggestions = append([]string(nil), notPlantSuggestions...)
	}
	return out
}

func failOpen() domain.PlantValidation {
	return domain.PlantValidation{
		IsPlant:    true,
		Confidence: failOpenConfidence,
		Unverified: true,
		Note:       failOpenNote,
	}
}
