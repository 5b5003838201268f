// Package embedding turns text into fixed-length vectors through an external
// embedding service, with validation, bounded retry, caching and metrics
// layered on as decorators.
package embedding

import (
	"context"
	"errors"
	"time"

	"widgetrag/internal/model"
)

const (
	BackendOpenAI = "openai"
	BackendLocal  = "local"
)

// Embedder produces embedding vectors. EmbedBatch returns one vector per input,
// in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error)
}

type Config struct {
	Backend      string
	BaseURL      string
	APIKey       string
	Model        string
	Dimensions   int
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	CacheTTL     time.Duration
}

// errNotRetryable marks an unavailable error that a retry cannot fix, such as
// a rejected API key.
var errNotRetryable = errors.New("not retryable")

func embedOne(ctx context.Context, e Embedder, text string) (model.Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
