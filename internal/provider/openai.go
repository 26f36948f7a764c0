package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	jaccerrors "github.com/jacc-ai/jacc-core/internal/errors"
)

// OpenAIConfig configures the OpenAI-compatible client. Any endpoint that
// speaks the /chat/completions and /embeddings wire format works.
type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
	MaxRetries     int
}

// OpenAIClient implements Embedder and Completer against an
// OpenAI-compatible HTTP API.
type OpenAIClient struct {
	config OpenAIConfig
	client *http.Client
	logger *slog.Logger
	dims   int
}

// Verify interface implementation at compile time
var (
	_ Embedder  = (*OpenAIClient)(nil)
	_ Completer = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client with defaults applied. A missing API
// key is not an error here; Available reports false and callers fall
// back to their degraded paths.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIClient{
		config: cfg,
		// Per-request deadlines come from the caller's context so task
		// timeouts stay in charge; no static client timeout.
		client: &http.Client{},
		logger: logger,
		dims:   cfg.Dimensions,
	}
}

// ModelName returns the chat model identifier.
func (c *OpenAIClient) ModelName() string { return c.config.ChatModel }

// Dimensions returns the embedding dimension, 0 until the first embed
// when not configured.
func (c *OpenAIClient) Dimensions() int { return c.dims }

// Available reports whether the client is usable. An empty API key means
// the provider was never configured.
func (c *OpenAIClient) Available(ctx context.Context) bool {
	return c.config.APIKey != ""
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete performs one chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.config.APIKey == "" {
		return "", jaccerrors.New(jaccerrors.ErrCodeProviderUnavailable, "no API key configured", nil)
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body := chatRequest{
		Model:       c.config.ChatModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONResponse {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := c.doJSON(ctx, "/chat/completions", body)
	if err != nil {
		return "", jaccerrors.New(jaccerrors.ErrCodeCompletionFailed, "chat completion failed", err)
	}

	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", jaccerrors.New(jaccerrors.ErrCodeCompletionFailed, "malformed completion response", err)
	}
	if len(out.Choices) == 0 {
		return "", jaccerrors.New(jaccerrors.ErrCodeCompletionFailed, "completion returned no choices", nil)
	}
	return out.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates embedding for a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting oversized
// batches into MaxBatchSize requests.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.config.APIKey == "" {
		return nil, jaccerrors.New(jaccerrors.ErrCodeProviderUnavailable, "no API key configured", nil)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))
		batch, err := c.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *OpenAIClient) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := c.doJSON(ctx, "/embeddings", embeddingRequest{
		Model: c.config.EmbeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, jaccerrors.New(jaccerrors.ErrCodeEmbeddingFailed, "embedding request failed", err)
	}

	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, jaccerrors.New(jaccerrors.ErrCodeEmbeddingFailed, "malformed embeddings response", err)
	}
	if len(out.Data) != len(texts) {
		return nil, jaccerrors.New(jaccerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(out.Data)), nil)
	}

	// The API documents data as ordered, but index is authoritative.
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, jaccerrors.New(jaccerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedding index %d out of range", d.Index), nil)
		}
		vecs[d.Index] = d.Embedding
	}
	if c.dims == 0 && len(vecs[0]) > 0 {
		c.dims = len(vecs[0])
	}
	return vecs, nil
}

// doJSON posts a JSON body and returns the raw response payload, retrying
// on connection errors, 429 and 5xx. Retry-After is honored when present.
func (c *OpenAIClient) doJSON(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := c.config.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying provider request",
				slog.String("path", path),
				slog.Int("attempt", attempt))
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		payload, retryAfter, err := c.doOnce(reqCtx, url, data)
		cancel()
		if err == nil {
			return payload, nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) || attempt == c.config.MaxRetries {
			break
		}

		delay := retryDelay(attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *OpenAIClient) doOnce(ctx context.Context, url string, data []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// Connection failures are worth retrying; context expiry is not.
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &retryableError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			&retryableError{err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &retryableError{err: fmt.Errorf("read response: %w", err)}
	}
	return payload, 0, nil
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
