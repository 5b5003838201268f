package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"widgetrag/internal/domain"
)

const defaultLocalEndpoint = "http://localhost:11434"

// Local drives an Ollama server through its Go client.
type Local struct {
	client *api.Client
	err    error
}

func NewLocal(cfg ProviderConfig) *Local {
	base, err := url.Parse(endpointOr(cfg.Endpoint, defaultLocalEndpoint))
	if err != nil {
		return &Local{err: fmt.Errorf("parse local endpoint: %w", err)}
	}
	return &Local{client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout})}
}

func (l *Local) Name() string { return ProviderLocal }

func (l *Local) request(req Request, stream bool) *api.GenerateRequest {
	var system, prompt []string
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		prompt = append(prompt, m.Content)
	}
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	return &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  strings.Join(prompt, "\n\n"),
		System:  strings.Join(system, "\n\n"),
		Stream:  &stream,
		Options: options,
	}
}

func localProviderError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return domain.NewProviderError(ProviderLocal, se.StatusCode, msg)
	}
	return domain.NewProviderError(ProviderLocal, 0, err.Error())
}

func localCompletion(content string, last api.GenerateResponse) *Completion {
	return &Completion{
		Content:      content,
		FinishReason: last.DoneReason,
		Usage: Usage{
			PromptTokens:     last.PromptEvalCount,
			CompletionTokens: last.EvalCount,
			TotalTokens:      last.PromptEvalCount + last.EvalCount,
		},
	}
}

func (l *Local) Generate(ctx context.Context, req Request) (*Completion, error) {
	return l.Stream(ctx, req, nil)
}

// Stream consumes the generate stream until a response reports done. A nil
// onChunk asks for a single non-streamed response.
func (l *Local) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	if l.err != nil {
		return nil, domain.NewProviderError(ProviderLocal, 0, l.err.Error())
	}

	var full strings.Builder
	var last api.GenerateResponse
	var consumerErr error
	done := false
	err := l.client.Generate(ctx, l.request(req, onChunk != nil), func(resp api.GenerateResponse) error {
		if resp.Response != "" {
			full.WriteString(resp.Response)
			if onChunk != nil {
				if err := onChunk(resp.Response); err != nil {
					consumerErr = err
					return err
				}
			}
		}
		if resp.Done {
			done = true
			last = resp
		}
		return nil
	})
	if consumerErr != nil {
		return nil, fmt.Errorf("stream consumer stopped: %w", consumerErr)
	}
	if err != nil {
		return nil, localProviderError(err)
	}
	if !done {
		return nil, domain.NewProviderError(ProviderLocal, 0, "stream ended before done")
	}
	return localCompletion(full.String(), last), nil
}

func (l *Local) ListModels(ctx context.Context) ([]string, error) {
	if l.err != nil {
		return nil, domain.NewProviderError(ProviderLocal, 0, l.err.Error())
	}
	resp, err := l.client.List(ctx)
	if err != nil {
		return nil, localProviderError(err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
