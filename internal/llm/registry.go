package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

type ModelDescriptor struct {
	ID            string   `yaml:"id" json:"id"`
	DisplayName   string   `yaml:"display_name" json:"display_name"`
	Provider      string   `yaml:"provider" json:"provider"`
	ContextWindow int      `yaml:"context_window" json:"context_window"`
	Capabilities  []string `yaml:"capabilities" json:"capabilities"`
	Tier          string   `yaml:"tier" json:"tier"`
}

// Registry is the static model catalog. It is read-only after construction.
type Registry struct {
	models map[string]ModelDescriptor
	order  []string
}

// DefaultModels is the built-in catalog used when no catalog file is configured.
func DefaultModels() []ModelDescriptor {
	return []ModelDescriptor{
		{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, ContextWindow: 128000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionPremium},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, ContextWindow: 128000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionBasic},
		{ID: "claude-3-5-sonnet-latest", DisplayName: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, ContextWindow: 200000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionPremium},
		{ID: "claude-3-5-haiku-latest", DisplayName: "Claude 3.5 Haiku", Provider: ProviderAnthropic, ContextWindow: 200000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionBasic},
		{ID: "deepseek-chat", DisplayName: "DeepSeek Chat", Provider: ProviderDeepSeek, ContextWindow: 64000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionBasic},
		{ID: "deepseek-reasoner", DisplayName: "DeepSeek Reasoner", Provider: ProviderDeepSeek, ContextWindow: 64000, Capabilities: []string{"chat", "streaming", "reasoning"}, Tier: model.SubscriptionPremium},
		{ID: "llama3.2:latest", DisplayName: "Llama 3.2 (local)", Provider: ProviderLocal, ContextWindow: 128000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionFree},
		{ID: "mistral:latest", DisplayName: "Mistral (local)", Provider: ProviderLocal, ContextWindow: 32000, Capabilities: []string{"chat", "streaming"}, Tier: model.SubscriptionFree},
		{ID: "deepseek-r1:14b", DisplayName: "DeepSeek R1 14B (local)", Provider: ProviderLocal, ContextWindow: 128000, Capabilities: []string{"chat", "streaming", "reasoning"}, Tier: model.SubscriptionFree},
	}
}

// NewRegistry validates descriptors and indexes them by id.
func NewRegistry(models []ModelDescriptor) (*Registry, error) {
	r := &Registry{models: make(map[string]ModelDescriptor, len(models))}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model descriptor without id: %w", domain.ErrInvalidConfiguration)
		}
		if _, dup := r.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q: %w", m.ID, domain.ErrInvalidConfiguration)
		}
		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderLocal:
		default:
			return nil, fmt.Errorf("model %q has unknown provider %q: %w", m.ID, m.Provider, domain.ErrInvalidConfiguration)
		}
		if !ValidTier(m.Tier) {
			return nil, fmt.Errorf("model %q has unknown tier %q: %w", m.ID, m.Tier, domain.ErrInvalidConfiguration)
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
		r.models[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	return r, nil
}

type catalogFile struct {
	Models []ModelDescriptor `yaml:"models"`
}

// LoadRegistry reads a YAML catalog, or returns the built-in one when path
// is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(DefaultModels())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %v: %w", path, err, domain.ErrInvalidConfiguration)
	}
	if len(cf.Models) == 0 {
		return nil, fmt.Errorf("model catalog %s lists no models: %w", path, domain.ErrInvalidConfiguration)
	}
	return NewRegistry(cf.Models)
}

func (r *Registry) Lookup(id string) (ModelDescriptor, bool) {
	m, ok := r.models[id]
	return m, ok
}

// All returns every descriptor in catalog order.
func (r *Registry) All() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}
