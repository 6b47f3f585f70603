package groq

import (
	"context"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision"
)

// Stage is the primary classifier stage.
type Stage struct {
	client   *Client
	model    string
	diseases []string
}

// NewStage builds the stage. diseases is the allow-list the prompt offers the
// model; it should match the reference table names.
func NewStage(client *Client, model string, diseases []string) *Stage {
	if model == "" {
		model = DefaultVisionModel
	}
	return &Stage{client: client, model: model, diseases: append([]string(nil), diseases...)}
}

func (s *Stage) Name() string { return ProviderName }

func (s *Stage) Detect(ctx context.Context, img domain.Image, cropType string) (domain.DetectionResult, error) {
	reply, err := s.client.complete(ctx, "groq.detect", s.model, vision.DetectionPrompt(cropType, s.diseases), img, 1024)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	return vision.ParseDetection(ProviderName, reply)
}

// Validator answers whether an image shows a plant.
type Validator struct {
	client *Client
	model  string
}

func NewValidator(client *Client, model string) *Validator {
	if model == "" {
		model = DefaultValidatorModel
	}
	return &Validator{client: client, model: model}
}

func (v *Validator) Validate(ctx context.Context, img domain.Image) (domain.PlantValidation, error) {
	reply, err := v.client.complete(ctx, "groq.validate", v.model, vision.ValidationPrompt, img, 200)
	if err != nil {
		return domain.PlantValidation{}, err
	}
	return vision.ParseValidation(ProviderName, reply)
}
