package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode"

	"gorm.io/gorm"

	"widgetrag/internal/cache"
	"widgetrag/internal/chunker"
	"widgetrag/internal/llm"
	"widgetrag/internal/model"
	"widgetrag/internal/platform/sqlite"
	"widgetrag/internal/repository"
)

var vocab = []string{"return", "refund", "ship", "deliver", "warrant"}

// keywordEmbedder counts vocabulary stems. The trailing constant keeps every
// vector non-zero.
type keywordEmbedder struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (e *keywordEmbedder) vector(text string) model.Vector {
	v := make(model.Vector, len(vocab)+1)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		for i, stem := range vocab {
			if strings.HasPrefix(w, stem) {
				v[i]++
			}
		}
	}
	v[len(vocab)] = 0.1
	return v
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]model.Vector, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([]model.Vector, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

type publishedJob struct {
	documentID uint
	reason     string
}

type fakePublisher struct {
	err  error
	jobs []publishedJob
}

func (p *fakePublisher) PublishDocumentJob(ctx context.Context, documentID uint, reason string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, publishedJob{documentID: documentID, reason: reason})
	return "job-1", nil
}

type fakeLocker struct {
	busy     bool
	err      error
	acquired int
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, documentID uint) (func(context.Context) error, error) {
	if l.busy {
		return nil, cache.ErrLockBusy
	}
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type fakeProvider struct {
	name   string
	chunks []string
	err    error
	last   llm.Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Content: strings.Join(f.chunks, "")}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req llm.Request, onChunk func(string) error) (*llm.Completion, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return nil, err
		}
	}
	return &llm.Completion{Content: strings.Join(f.chunks, "")}, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{f.name + "-model"}, nil
}

type recordingQuerySink struct {
	chunks    []string
	completes []QueryResult
	errs      []error
}

func (s *recordingQuerySink) OnChunk(text string) error {
	s.chunks = append(s.chunks, text)
	return nil
}

func (s *recordingQuerySink) OnComplete(result QueryResult) { s.completes = append(s.completes, result) }

func (s *recordingQuerySink) OnError(err error) { s.errs = append(s.errs, err) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, level string) *model.User {
	t.Helper()
	u := &model.User{
		Username:          name,
		Email:             name + "@example.com",
		PasswordHash:      "x",
		Role:              model.RoleUser,
		SubscriptionLevel: level,
	}
	if err := repository.NewUserRepository(db).Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

type docFixture struct {
	svc       *DocumentService
	publisher *fakePublisher
	locker    *fakeLocker
	embedder  *keywordEmbedder
	docs      *repository.DocumentRepository
	chunks    *repository.ChunkRepository
}

func newDocFixture(t *testing.T, db *gorm.DB) *docFixture {
	t.Helper()
	ch, err := chunker.New(60, 10)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	f := &docFixture{
		publisher: &fakePublisher{},
		locker:    &fakeLocker{},
		embedder:  &keywordEmbedder{},
		docs:      repository.NewDocumentRepository(db),
		chunks:    repository.NewChunkRepository(db),
	}
	f.svc = NewDocumentService(f.docs, f.chunks, f.publisher, f.locker, ch, f.embedder,
		DocumentServiceConfig{BatchSize: 2, EmbeddingModel: "keyword"}, nil)
	return f
}

func (f *docFixture) index(t *testing.T, ownerID uint, name, content string) *model.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, CreateDocumentInput{OwnerID: ownerID, Name: name, Content: content})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := f.svc.ProcessDocument(ctx, doc.ID); err != nil {
		t.Fatalf("process document: %v", err)
	}
	return doc
}

func newTestRouter(t *testing.T, defaultModel string, providers ...*fakeProvider) *llm.Router {
	t.Helper()
	registry, err := llm.NewRegistry(llm.DefaultModels())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg := llm.Config{DefaultModel: defaultModel, Providers: map[string]llm.ProviderConfig{}}
	ps := make([]llm.Provider, 0, len(providers))
	for _, p := range providers {
		cfg.Providers[p.name] = llm.ProviderConfig{Enabled: true}
		ps = append(ps, p)
	}
	return llm.NewRouter(cfg, registry, nil, ps...)
}
