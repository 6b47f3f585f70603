// Package groq talks to the Groq OpenAI-compatible chat completions API with
// inline image content.
package groq

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
	"github.com/kirillkom/cropguard/internal/infrastructure/vision"
)

const (
	ProviderName          = "groq"
	DefaultBaseURL        = "https://api.groq.com/openai/v1"
	DefaultVisionModel    = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultValidatorModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey string, executor *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one user turn with a prompt and an image and returns the
// assistant text.
func (c *Client) complete(ctx context.Context, operation, model, prompt string, img domain.Image, maxTokens int) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", domain.WrapError(domain.ErrProviderConfig, operation, errors.New("groq api key is not set"))
	}

	request := chatRequest{
		Model: model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: img.DataURL()}},
			},
		}},
		Temperature: 0.1,
		MaxTokens:   maxTokens,
	}

	var response chatResponse
	err := c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		response = chatResponse{}
		return vision.PostJSON(callCtx, c.httpClient, ProviderName, operation, c.baseURL+"/chat/completions", c.apiKey, request, &response)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapProviderError(operation, err)
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", domain.NewProviderReplyError(ProviderName, "", errors.New("empty completion"))
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
