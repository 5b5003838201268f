package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

var errUnavailable = fmt.Errorf("connection refused: %w", domain.ErrEmbeddingUnavailable)

func TestRetrying_RecoversFromTransientFailures(t *testing.T) {
	inner := &scriptedEmbedder{dim: 3, errs: []error{errUnavailable, errUnavailable}}
	r := NewRetrying(inner, 3, time.Millisecond, "test", nil)

	vec, err := r.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || inner.callCount() != 3 {
		t.Fatalf("vec=%v calls=%d", vec, inner.callCount())
	}
}

func TestRetrying_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &scriptedEmbedder{dim: 3, errs: []error{errUnavailable, errUnavailable, errUnavailable, errUnavailable}}
	r := NewRetrying(inner, 2, time.Millisecond, "test", nil)

	_, err := r.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if inner.callCount() != 3 {
		t.Fatalf("calls = %d, want 3", inner.callCount())
	}
}

func TestRetrying_DoesNotRetryInvalidResponse(t *testing.T) {
	invalid := fmt.Errorf("bad payload: %w", domain.ErrEmbeddingInvalidResponse)
	inner := &scriptedEmbedder{dim: 3, errs: []error{invalid}}
	r := NewRetrying(inner, 5, time.Millisecond, "test", nil)

	_, err := r.Embed(context.Background(), "a")
	if !errors.Is(err, domain.ErrEmbeddingInvalidResponse) || inner.callCount() != 1 {
		t.Fatalf("err=%v calls=%d", err, inner.callCount())
	}
}

func TestRetrying_StopsOnContextCancel(t *testing.T) {
	inner := &scriptedEmbedder{dim: 3, errs: []error{errUnavailable, errUnavailable}}
	r := NewRetrying(inner, 5, time.Hour, "test", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := r.Embed(ctx, "a")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) || inner.callCount() != 1 {
		t.Fatalf("err=%v calls=%d", err, inner.callCount())
	}
}

func TestRetrying_BackoffIsCapped(t *testing.T) {
	r := NewRetrying(nil, 50, 500*time.Millisecond, "test", nil)
	b := r.policy()

	limit := time.Duration(float64(maxRetryInterval) * 1.2)
	var last time.Duration
	for i := 0; i < 50; i++ {
		last = b.NextBackOff()
		if last <= 0 || last > limit {
			t.Fatalf("wait %d = %v, want within (0, %v]", i, last, limit)
		}
	}
	if last < time.Duration(float64(maxRetryInterval)*0.8) {
		t.Fatalf("final wait %v never reached the cap", last)
	}
}

type fixedEmbedder struct{ vecs []model.Vector }

func (f fixedEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	return f.vecs[0], nil
}

func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	return f.vecs, nil
}

func TestValidating(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		dims int
		vecs []model.Vector
		ok   bool
	}{
		{"valid", 2, []model.Vector{{1, 2}}, true},
		{"empty", 2, []model.Vector{{}}, false},
		{"nan", 2, []model.Vector{{nan, 1}}, false},
		{"wrong dims", 3, []model.Vector{{1, 2}}, false},
		{"first observed fixes dims", 0, []model.Vector{{1, 2}, {1, 2, 3}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidating(fixedEmbedder{vecs: tt.vecs}, tt.dims)
			texts := make([]string, len(tt.vecs))
			_, err := v.EmbedBatch(context.Background(), texts)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrEmbeddingInvalidResponse) {
				t.Fatalf("err = %v, want ErrEmbeddingInvalidResponse", err)
			}
		})
	}
}

func TestValidating_CountMismatch(t *testing.T) {
	v := NewValidating(fixedEmbedder{vecs: []model.Vector{{1}}}, 0)
	_, err := v.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingInvalidResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestCached_HitSkipsInner(t *testing.T) {
	inner := &scriptedEmbedder{dim: 4}
	c := NewCached(inner, newMemStore(), "m", time.Minute, nil)
	ctx := context.Background()

	first, err := c.Embed(ctx, "returns policy")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := c.Embed(ctx, "returns policy")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if inner.callCount() != 1 {
		t.Fatalf("inner called %d times, want 1", inner.callCount())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs: %v vs %v", first, second)
		}
	}
}

func TestCached_BatchOnlyEmbedsMisses(t *testing.T) {
	inner := &scriptedEmbedder{dim: 2}
	c := NewCached(inner, newMemStore(), "m", time.Minute, nil)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "b"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	inner.texts = nil
	vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "ccc"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 3 {
		t.Fatalf("unexpected vectors %v", vecs)
	}
	if len(inner.texts) != 2 || inner.texts[0] != "a" || inner.texts[1] != "ccc" {
		t.Fatalf("inner embedded %v, want [a ccc]", inner.texts)
	}
}

func TestCached_StoreFailureFallsThrough(t *testing.T) {
	inner := &scriptedEmbedder{dim: 2}
	store := newMemStore()
	store.err = errors.New("redis down")
	c := NewCached(inner, store, "m", time.Minute, nil)

	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.callCount() != 1 {
		t.Fatalf("calls = %d", inner.callCount())
	}
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "carrier-pigeon"}, nil, nil); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("err = %v", err)
	}
}
