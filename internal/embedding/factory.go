package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"widgetrag/internal/domain"
)

// New assembles the configured backend with validation, retry and metrics.
// A nil store disables caching.
func New(cfg Config, store Store, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Backend {
	case BackendOpenAI:
		base = NewOpenAIClient(cfg)
	case BackendLocal:
		base = NewLocalClient(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q: %w", cfg.Backend, domain.ErrInvalidConfiguration)
	}

	var e Embedder = NewValidating(base, cfg.Dimensions)
	e = NewInstrumented(e, cfg.Backend, cfg.Model, logger)
	e = NewRetrying(e, cfg.MaxRetries, cfg.RetryBackoff, cfg.Backend, logger)
	if store != nil {
		e = NewCached(e, store, cfg.Model, cfg.CacheTTL, logger)
	}
	return e, nil
}
