package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

// Validating rejects malformed vectors from the wrapped embedder. When
// dimensions is zero the first accepted vector fixes the expected length.
type Validating struct {
	next Embedder

	mu         sync.Mutex
	dimensions int
}

func NewValidating(next Embedder, dimensions int) *Validating {
	return &Validating{next: next, dimensions: dimensions}
}

func (v *Validating) Embed(ctx context.Context, text string) (model.Vector, error) {
	vec, err := v.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := v.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (v *Validating) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	vecs, err := v.next.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(vecs), domain.ErrEmbeddingInvalidResponse)
	}
	for i, vec := range vecs {
		if err := v.check(vec); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return vecs, nil
}

func (v *Validating) check(vec model.Vector) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingInvalidResponse)
	}
	for _, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding contains non-finite value: %w", domain.ErrEmbeddingInvalidResponse)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dimensions == 0 {
		v.dimensions = len(vec)
		return nil
	}
	if len(vec) != v.dimensions {
		return fmt.Errorf("embedding has %d dimensions, expected %d: %w", len(vec), v.dimensions, domain.ErrEmbeddingInvalidResponse)
	}
	return nil
}
