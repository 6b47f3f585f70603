package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
)

const errorBodyLimit = 2048

// PostJSON sends payload as JSON and decodes a 2xx reply into out. Non-2xx
// replies come back as *resilience.HTTPStatusError.
func PostJSON(ctx context.Context, client *http.Client, provider, operation, url, bearer string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return Post(ctx, client, provider, operation, url, bearer, "application/json", body, out)
}

// Post sends a raw body and decodes a 2xx JSON reply into out.
func Post(ctx context.Context, client *http.Client, provider, operation, url, bearer, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", provider, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &resilience.HTTPStatusError{
			Provider:   provider,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
