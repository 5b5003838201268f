package llm

// NewProviders builds an adapter for every enabled provider in cfg.
func NewProviders(cfg Config) []Provider {
	var out []Provider
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch name {
		case ProviderOpenAI, ProviderDeepSeek:
			out = append(out, NewOpenAICompatible(name, pc))
		case ProviderAnthropic:
			out = append(out, NewAnthropic(pc))
		case ProviderLocal:
			out = append(out, NewLocal(pc))
		}
	}
	return out
}
