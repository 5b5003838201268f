package embedding

import (
	"context"
	"sync"
	"time"

	"widgetrag/internal/model"
)

// scriptedEmbedder returns errs in order, then vectors of length dim.
type scriptedEmbedder struct {
	mu    sync.Mutex
	errs  []error
	dim   int
	calls int
	texts []string
}

func (s *scriptedEmbedder) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}

func (s *scriptedEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return s.vector(text), nil
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.texts = append(s.texts, texts...)
	s.mu.Unlock()
	out := make([]model.Vector, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *scriptedEmbedder) vector(text string) model.Vector {
	v := make(model.Vector, s.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v
}

func (s *scriptedEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}
