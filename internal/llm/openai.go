package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"widgetrag/internal/domain"
)

const (
	defaultOpenAIEndpoint   = "https://api.openai.com/v1"
	defaultDeepSeekEndpoint = "https://api.deepseek.com/v1"
)

// OpenAICompatible serves any chat-completions API shaped like OpenAI's.
// The OpenAI-like and DeepSeek-like providers differ only in name and URL.
type OpenAICompatible struct {
	name   string
	client *openai.Client
}

func NewOpenAICompatible(name string, cfg ProviderConfig) *OpenAICompatible {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = endpointOr(cfg.Endpoint, defaultEndpoint(name))
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAICompatible{name: name, client: openai.NewClientWithConfig(clientCfg)}
}

func defaultEndpoint(name string) string {
	if name == ProviderDeepSeek {
		return defaultDeepSeekEndpoint
	}
	return defaultOpenAIEndpoint
}

func (p *OpenAICompatible) Name() string { return p.name }

func (p *OpenAICompatible) chatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return out
}

func (p *OpenAICompatible) Generate(ctx context.Context, req Request) (*Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(req, false))
	if err != nil {
		return nil, p.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewProviderError(p.name, 0, "response contained no choices")
	}
	return &Completion{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAICompatible) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.chatRequest(req, true))
	if err != nil {
		return nil, p.wrap(err)
	}
	defer stream.Close()

	var full strings.Builder
	out := &Completion{}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.wrap(err)
		}
		if resp.Usage != nil {
			out.Usage = Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			out.FinishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		full.WriteString(choice.Delta.Content)
		if err := onChunk(choice.Delta.Content); err != nil {
			return nil, fmt.Errorf("stream consumer stopped: %w", err)
		}
	}
	out.Content = full.String()
	return out, nil
}

func (p *OpenAICompatible) ListModels(ctx context.Context) ([]string, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, p.wrap(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (p *OpenAICompatible) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewProviderError(p.name, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return domain.NewProviderError(p.name, reqErr.HTTPStatusCode, msg)
	}
	return domain.NewProviderError(p.name, 0, err.Error())
}

func endpointOr(endpoint, fallback string) string {
	if endpoint == "" {
		return fallback
	}
	return strings.TrimRight(endpoint, "/")
}
