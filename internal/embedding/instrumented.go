package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"widgetrag/internal/metrics"
	"widgetrag/internal/model"
)

// Instrumented records one metric sample per call to the wrapped embedder.
type Instrumented struct {
	next    Embedder
	backend string
	model   string
	logger  *zap.Logger
}

func NewInstrumented(next Embedder, backend, modelName string, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{next: next, backend: backend, model: modelName, logger: logger}
}

func (i *Instrumented) Embed(ctx context.Context, text string) (model.Vector, error) {
	start := time.Now()
	vec, err := i.next.Embed(ctx, text)
	i.observe(start, 1, err)
	return vec, err
}

func (i *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	start := time.Now()
	vecs, err := i.next.EmbedBatch(ctx, texts)
	i.observe(start, len(texts), err)
	return vecs, err
}

func (i *Instrumented) observe(start time.Time, n int, err error) {
	elapsed := time.Since(start)
	metrics.EmbeddingRequestsTotal.WithLabelValues(i.backend, i.model, metrics.StatusLabel(err)).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(i.backend, i.model).Observe(elapsed.Seconds())
	i.logger.Debug("embedding call",
		zap.String("backend", i.backend),
		zap.String("model", i.model),
		zap.Int("texts", n),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
}
