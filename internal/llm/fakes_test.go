package llm

import (
	"context"
	"strings"
	"sync"
)

type fakeProvider struct {
	name   string
	chunks []string
	err    error

	mu       sync.Mutex
	calls    int
	requests []Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) record(req Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
}

func (f *fakeProvider) Generate(ctx context.Context, req Request) (*Completion, error) {
	f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Content: strings.Join(f.chunks, "")}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return nil, err
		}
	}
	return &Completion{Content: strings.Join(f.chunks, "")}, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{f.name + "-model"}, nil
}

type recordingSink struct {
	chunks    []string
	completes []Response
	errs      []error
	failAfter int
}

func (s *recordingSink) OnChunk(text string) error {
	s.chunks = append(s.chunks, text)
	if s.failAfter > 0 && len(s.chunks) >= s.failAfter {
		return errClientGone
	}
	return nil
}

func (s *recordingSink) OnComplete(resp Response) { s.completes = append(s.completes, resp) }
func (s *recordingSink) OnError(err error)        { s.errs = append(s.errs, err) }
