package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"go.uber.org/zap"

	"widgetrag/internal/metrics"
	"widgetrag/internal/model"
)

// Store is a byte-oriented key/value cache. Get reports found=false on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached serves repeated texts from a Store. Cache failures are logged and
// fall through to the wrapped embedder.
type Cached struct {
	next   Embedder
	store  Store
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Embedder, store Store, modelName string, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, store: store, model: modelName, ttl: ttl, logger: logger}
}

func (c *Cached) Embed(ctx context.Context, text string) (model.Vector, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, c.key(text), encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	out := make([]model.Vector, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.store.Set(ctx, c.key(texts[i]), encodeVector(vecs[j]), c.ttl); err != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func (c *Cached) lookup(ctx context.Context, text string) (model.Vector, bool) {
	raw, found, err := c.store.Get(ctx, c.key(text))
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	vec, ok := decodeVector(raw)
	if !found || !ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	return vec, true
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func encodeVector(vec model.Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(raw []byte) (model.Vector, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	vec := make(model.Vector, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, true
}
