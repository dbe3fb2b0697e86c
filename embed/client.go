package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Embedder is the batch text-to-vector contract. Implementations must
// preserve input order: vector i corresponds to text i.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ClientConfig holds configuration for the embedding service client.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Logger            *zap.SugaredLogger
}

// Client calls the external embedding service over HTTP. Requests are rate
// limited and retried with exponential backoff; all sections of a rule go out
// in a single batch rather than one call per section.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.SugaredLogger
}

// NewClient creates an embedding service client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 10
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		maxRetries: config.MaxRetries,
		logger:     config.Logger,
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch embeds a batch of texts in one service call. Blank texts never
// reach the network: they map to zero vectors locally, and only the non-blank
// remainder is sent. A response vector of the wrong dimension is replaced by
// a zero vector so one bad section degrades its own weighted term instead of
// failing the batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var payload []string
	var payloadIdx []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			vectors[i] = make([]float32, Dimension)
			continue
		}
		payload = append(payload, text)
		payloadIdx = append(payloadIdx, i)
	}
	if len(payload) == 0 {
		return vectors, nil
	}

	embeddings, err := c.requestWithRetry(ctx, payload)
	if err != nil {
		return nil, err
	}

	for j, idx := range payloadIdx {
		if j < len(embeddings) && len(embeddings[j]) == Dimension {
			vectors[idx] = embeddings[j]
		} else {
			c.logger.Warnw("Embedding service returned unusable vector, padding with zeros",
				"index", j,
				"expected_dim", Dimension)
			vectors[idx] = make([]float32, Dimension)
		}
	}
	return vectors, nil
}

func (c *Client) requestWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Warnw("Retrying embedding request",
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		embeddings, retryable, err := c.request(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding request failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) request(ctx context.Context, texts []string) (embeddings [][]float32, retryable bool, err error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		// Client errors will not succeed on retry; server errors and
		// throttling might.
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, err
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, true, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, false, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors",
			len(texts), len(decoded.Embeddings))
	}
	return decoded.Embeddings, false, nil
}
