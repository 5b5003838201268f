package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"widgetrag/internal/domain"
	"widgetrag/internal/metrics"
	"widgetrag/internal/model"
)

// maxRetryInterval caps a single wait between attempts.
const maxRetryInterval = 30 * time.Second

// Retrying re-issues calls that failed with ErrEmbeddingUnavailable using
// jittered exponential backoff starting at the configured interval. Other
// errors return immediately.
type Retrying struct {
	next       Embedder
	maxRetries int
	backoff    time.Duration
	backend    string
	logger     *zap.Logger
}

func NewRetrying(next Embedder, maxRetries int, initial time.Duration, backend string, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{next: next, maxRetries: maxRetries, backoff: initial, backend: backend, logger: logger}
}

func (r *Retrying) Embed(ctx context.Context, text string) (model.Vector, error) {
	var out model.Vector
	err := r.do(ctx, func() error {
		vec, err := r.next.Embed(ctx, text)
		out = vec
		return err
	})
	return out, err
}

func (r *Retrying) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	var out []model.Vector
	err := r.do(ctx, func() error {
		vecs, err := r.next.EmbedBatch(ctx, texts)
		out = vecs
		return err
	})
	return out, err
}

func (r *Retrying) policy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (r *Retrying) do(ctx context.Context, call func() error) error {
	attempt := 0
	op := func() error {
		err := call()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		attempt++
		r.logger.Warn("embedding service unavailable, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", r.maxRetries),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		metrics.EmbeddingRetriesTotal.WithLabelValues(r.backend).Inc()
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.policy(), uint64(r.maxRetries)), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	if err != nil && ctx.Err() != nil && !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return fmt.Errorf("embedding retry aborted: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrEmbeddingUnavailable) && !errors.Is(err, errNotRetryable)
}
