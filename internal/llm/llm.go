// Package llm routes generation requests to one of several LLM providers
// based on a static model registry and the caller's subscription tier.
package llm

import (
	"context"
	"time"
)

// Provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
	ProviderLocal     = "local"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults applied when a request leaves sampling settings empty.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 500
)

type Message struct {
	Role    string
	Content string
}

// Request is what the router hands to a provider adapter.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a provider's raw answer.
type Completion struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Provider is one LLM backend. Stream calls onChunk for every text fragment in
// order and returns the assembled completion once the upstream signals the
// end. A non-nil error from onChunk aborts the stream.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Completion, error)
	Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Response is the router's answer to a caller.
type Response struct {
	Content    string   `json:"content"`
	Citations  []string `json:"citations"`
	Confidence float64  `json:"confidence"`
	ModelID    string   `json:"model_id"`
	Provider   string   `json:"provider"`
	Usage      Usage    `json:"usage"`
}

// Sink consumes a streamed response. Exactly one of OnComplete or OnError is
// called, after zero or more OnChunk calls.
type Sink interface {
	OnChunk(text string) error
	OnComplete(resp Response)
	OnError(err error)
}

type ProviderConfig struct {
	APIKey       string
	Endpoint     string
	DefaultModel string
	Enabled      bool
	Timeout      time.Duration
	Confidence   float64
}

type Config struct {
	SystemPrompt string
	DefaultModel string
	Providers    map[string]ProviderConfig
}

var defaultConfidence = map[string]float64{
	ProviderOpenAI:    0.85,
	ProviderAnthropic: 0.85,
	ProviderDeepSeek:  0.9,
	ProviderLocal:     0.75,
}
