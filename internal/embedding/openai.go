package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

// OpenAIClient talks to any OpenAI-compatible /embeddings endpoint.
type OpenAIClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) (model.Vector, error) {
	return embedOne(ctx, c, text)
}

func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          c.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(resp.Data), domain.ErrEmbeddingInvalidResponse)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([]model.Vector, len(data))
	for i, d := range data {
		out[i] = model.Vector(d.Embedding)
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, string(reqErr.Body))
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("decode embedding response: %v: %w", err, domain.ErrEmbeddingInvalidResponse)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingUnavailable)
}

// statusError maps an HTTP failure onto the taxonomy. 429 and 5xx are worth
// retrying; other statuses are not.
func statusError(status int, detail string) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("embedding API error %d: %s: %w", status, detail, domain.ErrEmbeddingUnavailable)
	}
	return fmt.Errorf("embedding API error %d: %s: %w: %w", status, detail, domain.ErrEmbeddingUnavailable, errNotRetryable)
}
