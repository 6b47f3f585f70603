// Package ollama runs detection against a local Ollama vision model.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision"
)

const (
	ProviderName       = "ollama"
	DefaultVisionModel = "llava:7b"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	if model == "" {
		model = DefaultVisionModel
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// generateJSON sends a prompt with inline images and returns the model text.
func (c *Client) generateJSON(ctx context.Context, operation, prompt string, images ...domain.Image) (string, error) {
	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, img.Base64())
	}
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"images": encoded,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		return vision.PostJSON(callCtx, c.httpClient, ProviderName, operation, c.baseURL+"/api/generate", "", reqBody, &response)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapProviderError(operation, err)
	}
	return strings.TrimSpace(response.Response), nil
}

// Stage is the optional self-hosted classifier stage.
type Stage struct {
	client   *Client
	diseases []string
}

func NewStage(client *Client, diseases []string) *Stage {
	return &Stage{client: client, diseases: append([]string(nil), diseases...)}
}

func (s *Stage) Name() string { return ProviderName }

func (s *Stage) Detect(ctx context.Context, img domain.Image, cropType string) (domain.DetectionResult, error) {
	reply, err := s.client.generateJSON(ctx, "ollama.detect", vision.DetectionPrompt(cropType, s.diseases), img)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	return vision.ParseDetection(ProviderName, reply)
}
