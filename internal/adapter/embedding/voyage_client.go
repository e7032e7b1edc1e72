// Package embedding holds the external embedding-provider adapter.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"protocol-engine/internal/domain"
)

const (
	// maxInputChars is the provider's documented per-text truncation
	// limit; longer inputs are truncated client-side.
	maxInputChars = 8000

	// retryBackoff is the pause before the single bounded retry on a
	// retryable provider error.
	retryBackoff = 250 * time.Millisecond
)

// VoyageClient implements domain.VectorEncoder against the Voyage AI
// embeddings API (voyage-large-2, 1536 dims).
type VoyageClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewVoyageClient constructs a VoyageClient. requestsPerSecond bounds
// outbound calls to stay under the provider's rate limit; client may be a
// shared pooled client.
func NewVoyageClient(baseURL, apiKey, model string, requestsPerSecond float64, client *http.Client, logger *slog.Logger) *VoyageClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 3
	}
	return &VoyageClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Encode embeds a batch of texts. Retryable failures (rate limit, 5xx,
// timeout) get one bounded retry with backoff; non-retryable failures
// (auth, malformed input) propagate immediately.
func (c *VoyageClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > maxInputChars {
			t = t[:maxInputChars]
		}
		truncated[i] = t
	}

	vectors, err := c.encodeOnce(ctx, truncated)
	if err != nil && domain.IsRetryable(err) {
		c.logger.Warn("embedding_retry",
			slog.String("error", err.Error()),
			slog.Int("text_count", len(texts)))
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		vectors, err = c.encodeOnce(ctx, truncated)
	}
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *VoyageClient) encodeOnce(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	jsonData, err := json.Marshal(embedRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		// Transport failures and timeouts are worth one retry.
		transient := !errors.Is(err, context.Canceled)
		return nil, &domain.EmbeddingProviderError{Transient: transient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.EmbeddingProviderError{
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, &domain.EmbeddingProviderError{Transient: false, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(respBody.Data) != len(texts) {
		return nil, &domain.EmbeddingProviderError{Transient: false, Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(respBody.Data))}
	}

	// The API documents index-ordered data but order by index anyway.
	vectors := make([][]float32, len(texts))
	for _, d := range respBody.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &domain.EmbeddingProviderError{Transient: false, Err: fmt.Errorf("embedding index %d out of range", d.Index)}
		}
		vectors[d.Index] = d.Embedding
	}

	c.logger.Info("embedding_completed",
		slog.Int("text_count", len(texts)),
		slog.String("model", c.Model),
		slog.Duration("elapsed", time.Since(start)))
	return vectors, nil
}

// Version returns the embedding model identifier.
func (c *VoyageClient) Version() string {
	return c.Model
}

var _ domain.VectorEncoder = (*VoyageClient)(nil)
