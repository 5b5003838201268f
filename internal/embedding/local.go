package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

// LocalClient embeds through an Ollama server. The server embeds one prompt
// per request, so batches run sequentially.
type LocalClient struct {
	client *api.Client
	model  string
	err    error
}

func NewLocalClient(cfg Config) *LocalClient {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return &LocalClient{model: cfg.Model, err: fmt.Errorf("parse embedding base url: %w", err)}
	}
	return &LocalClient{
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}
}

func (c *LocalClient) Embed(ctx context.Context, text string) (model.Vector, error) {
	if c.err != nil {
		return nil, fmt.Errorf("%v: %w: %w", c.err, domain.ErrEmbeddingUnavailable, errNotRetryable)
	}
	resp, err := c.client.Embeddings(ctx, &api.EmbeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, localEmbeddingError(err)
	}
	vec := make(model.Vector, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func localEmbeddingError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		detail := se.ErrorMessage
		if detail == "" {
			detail = se.Status
		}
		return statusError(se.StatusCode, detail)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("decode embedding response: %v: %w", err, domain.ErrEmbeddingInvalidResponse)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingUnavailable)
}

func (c *LocalClient) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	out := make([]model.Vector, 0, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}
