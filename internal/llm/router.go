package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"widgetrag/internal/domain"
	"widgetrag/internal/metrics"
)

// GenerateInput is one question with its retrieved context.
type GenerateInput struct {
	Query             string
	ContextChunks     []string
	CitationTitles    []string
	ModelID           string
	SubscriptionLevel string
	Temperature       *float64
	MaxTokens         int
}

type Router struct {
	cfg       Config
	registry  *Registry
	providers map[string]Provider
	logger    *zap.Logger

	promptMu     sync.RWMutex
	systemPrompt string
}

// NewRouter binds adapters to the registry. Providers absent from cfg, or
// disabled there, are treated as unconfigured.
func NewRouter(cfg Config, registry *Registry, logger *zap.Logger, providers ...Provider) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		cfg:          cfg,
		registry:     registry,
		providers:    make(map[string]Provider, len(providers)),
		logger:       logger,
		systemPrompt: cfg.SystemPrompt,
	}
	for _, p := range providers {
		if pc, ok := cfg.Providers[p.Name()]; ok && pc.Enabled {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// SystemPrompt returns the prompt prepended to every request. Empty means
// the built-in default.
func (r *Router) SystemPrompt() string {
	r.promptMu.RLock()
	defer r.promptMu.RUnlock()
	return r.systemPrompt
}

// SetSystemPrompt swaps the prompt for requests resolved from now on.
func (r *Router) SetSystemPrompt(prompt string) {
	r.promptMu.Lock()
	r.systemPrompt = prompt
	r.promptMu.Unlock()
}

// GetAvailableModels returns the whole catalog.
func (r *Router) GetAvailableModels() []ModelDescriptor {
	return r.registry.All()
}

// ModelsForLevel returns the catalog entries a subscription level may use
// right now.
func (r *Router) ModelsForLevel(level string) []ModelDescriptor {
	var out []ModelDescriptor
	for _, m := range r.registry.All() {
		if r.IsModelAvailable(m.ID, level) {
			out = append(out, m)
		}
	}
	return out
}

// IsModelAvailable reports whether the model exists, the tier admits it, and
// its provider is configured.
func (r *Router) IsModelAvailable(modelID, level string) bool {
	m, ok := r.registry.Lookup(modelID)
	if !ok || !TierAllows(level, m.Tier) {
		return false
	}
	_, configured := r.providers[m.Provider]
	return configured
}

// DefaultModelFor picks the configured default model when the level may use
// it, else the first catalog model the level may use.
func (r *Router) DefaultModelFor(level string) (string, bool) {
	if r.IsModelAvailable(r.cfg.DefaultModel, level) {
		return r.cfg.DefaultModel, true
	}
	for _, m := range r.registry.All() {
		if r.IsModelAvailable(m.ID, level) {
			return m.ID, true
		}
	}
	return "", false
}

// ListProviderModels asks a provider which models it can serve.
func (r *Router) ListProviderModels(ctx context.Context, provider string) ([]string, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured: %w", provider, domain.ErrModelNotFound)
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, asProviderError(provider, err)
	}
	return models, nil
}

type route struct {
	model    ModelDescriptor
	provider Provider
	request  Request
}

// resolve performs every check that needs no network: lookup, tier, provider.
func (r *Router) resolve(in GenerateInput) (*route, error) {
	m, ok := r.registry.Lookup(in.ModelID)
	if !ok {
		return nil, fmt.Errorf("model %q: %w", in.ModelID, domain.ErrModelNotFound)
	}
	if !TierAllows(in.SubscriptionLevel, m.Tier) {
		return nil, fmt.Errorf("model %q requires %s, caller has %q: %w", m.ID, m.Tier, in.SubscriptionLevel, domain.ErrModelNotAuthorized)
	}
	p, ok := r.providers[m.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %q for model %q is not configured: %w", m.Provider, m.ID, domain.ErrModelNotFound)
	}

	temp := DefaultTemperature
	if in.Temperature != nil {
		temp = *in.Temperature
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &route{
		model:    m,
		provider: p,
		request: Request{
			Model:       m.ID,
			Messages:    BuildMessages(r.SystemPrompt(), in.Query, in.ContextChunks, in.CitationTitles),
			Temperature: temp,
			MaxTokens:   maxTokens,
		},
	}, nil
}

// GenerateResponse answers in one piece. There is no fallback to another
// provider when the chosen one fails.
func (r *Router) GenerateResponse(ctx context.Context, in GenerateInput) (*Response, error) {
	rt, err := r.resolve(in)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	completion, err := rt.provider.Generate(ctx, rt.request)
	r.observe(rt, "generate", start, err)
	if err != nil {
		return nil, asProviderError(rt.model.Provider, err)
	}
	return r.response(rt, completion, in.CitationTitles), nil
}

// StreamResponse forwards fragments to sink as they arrive and ends with
// exactly one OnComplete or OnError. The returned error mirrors OnError.
func (r *Router) StreamResponse(ctx context.Context, in GenerateInput, sink Sink) error {
	rt, err := r.resolve(in)
	if err != nil {
		sink.OnError(err)
		return err
	}

	start := time.Now()
	completion, err := rt.provider.Stream(ctx, rt.request, sink.OnChunk)
	r.observe(rt, "stream", start, err)
	if err != nil {
		err = asProviderError(rt.model.Provider, err)
		sink.OnError(err)
		return err
	}
	sink.OnComplete(*r.response(rt, completion, in.CitationTitles))
	return nil
}

func (r *Router) response(rt *route, c *Completion, titles []string) *Response {
	return &Response{
		Content:    c.Content,
		Citations:  Citations(titles),
		Confidence: r.confidence(rt.model.Provider),
		ModelID:    rt.model.ID,
		Provider:   rt.model.Provider,
		Usage:      c.Usage,
	}
}

func (r *Router) confidence(provider string) float64 {
	if pc, ok := r.cfg.Providers[provider]; ok && pc.Confidence > 0 {
		return pc.Confidence
	}
	return defaultConfidence[provider]
}

func (r *Router) observe(rt *route, mode string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.LLMRequestsTotal.WithLabelValues(rt.model.Provider, rt.model.ID, mode, metrics.StatusLabel(err)).Inc()
	metrics.LLMRequestDuration.WithLabelValues(rt.model.Provider, rt.model.ID, mode).Observe(elapsed.Seconds())
	if err != nil {
		r.logger.Warn("llm call failed",
			zap.String("provider", rt.model.Provider),
			zap.String("model", rt.model.ID),
			zap.String("mode", mode),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("llm call",
		zap.String("provider", rt.model.Provider),
		zap.String("model", rt.model.ID),
		zap.String("mode", mode),
		zap.Duration("elapsed", elapsed),
	)
}

// asProviderError makes sure any adapter failure surfaces as ErrLLMProviderError.
func asProviderError(provider string, err error) error {
	if errors.Is(err, domain.ErrLLMProviderError) {
		return err
	}
	return domain.NewProviderError(provider, 0, err.Error())
}
