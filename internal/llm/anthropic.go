package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"widgetrag/internal/domain"
)

const defaultAnthropicEndpoint = "https://api.anthropic.com"

// Anthropic speaks the Messages API through the official SDK. Retries are
// left to the router, so the client never retries on its own.
type Anthropic struct {
	client anthropic.Client
}

func NewAnthropic(cfg ProviderConfig) *Anthropic {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(endpointOr(cfg.Endpoint, defaultAnthropicEndpoint)),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	)
	return &Anthropic{client: client}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) params(req Request) anthropic.MessageNewParams {
	out := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			out.Messages = append(out.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out.Messages = append(out.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		out.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	return out
}

// providerError maps SDK failures onto ProviderError, keeping the upstream
// status and the API's own message when there is one.
func (a *Anthropic) providerError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return domain.NewProviderError(ProviderAnthropic, apiErr.StatusCode, anthropicErrorMessage(apiErr))
	}
	return domain.NewProviderError(ProviderAnthropic, 0, err.Error())
}

func anthropicErrorMessage(apiErr *anthropic.Error) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(apiErr.RawJSON()), &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return apiErr.Error()
}

func usageFrom(input, output int64) Usage {
	return Usage{
		PromptTokens:     int(input),
		CompletionTokens: int(output),
		TotalTokens:      int(input + output),
	}
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (*Completion, error) {
	msg, err := a.client.Messages.New(ctx, a.params(req))
	if err != nil {
		return nil, a.providerError(err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Completion{
		Content:      text.String(),
		FinishReason: string(msg.StopReason),
		Usage:        usageFrom(msg.Usage.InputTokens, msg.Usage.OutputTokens),
	}, nil
}

func (a *Anthropic) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(req))
	defer stream.Close()

	var full strings.Builder
	var input, output int64
	out := &Completion{}
	stopped := false
	for stream.Next() {
		ev := stream.Current()
		switch ev.Type {
		case "message_start":
			input = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			full.WriteString(ev.Delta.Text)
			if err := onChunk(ev.Delta.Text); err != nil {
				return nil, fmt.Errorf("stream consumer stopped: %w", err)
			}
		case "message_delta":
			output = ev.Usage.OutputTokens
			if ev.Delta.StopReason != "" {
				out.FinishReason = string(ev.Delta.StopReason)
			}
		case "message_stop":
			stopped = true
		}
	}
	if err := stream.Err(); err != nil {
		return nil, a.providerError(err)
	}
	if !stopped {
		return nil, domain.NewProviderError(ProviderAnthropic, 0, "stream ended before message_stop")
	}
	out.Content = full.String()
	out.Usage = usageFrom(input, output)
	return out, nil
}

func (a *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, a.providerError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
