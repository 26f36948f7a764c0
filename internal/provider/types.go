// Package provider defines the LLM and embedding provider interfaces and
// the OpenAI-compatible HTTP implementation behind them.
package provider

import (
	"context"
	"time"
)

// Common provider constants
const (
	// DefaultMaxRetries is the default number of retry attempts for
	// transient HTTP failures.
	DefaultMaxRetries = 3

	// DefaultRequestTimeout bounds a single provider round-trip.
	DefaultRequestTimeout = 30 * time.Second

	// MaxBatchSize caps a single embeddings request (prevents oversized
	// payloads being rejected by the API).
	MaxBatchSize = 256
)

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64

	// JSONResponse asks the model for a JSON object response. Callers
	// that parse the completion set this so malformed prose never
	// reaches the decoder.
	JSONResponse bool
}

// Completer produces chat completions.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	ModelName() string
	Available(ctx context.Context) bool
}
