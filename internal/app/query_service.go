package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"widgetrag/internal/embedding"
	"widgetrag/internal/llm"
	"widgetrag/internal/logger"
	"widgetrag/internal/model"
	"widgetrag/internal/repository"
	"widgetrag/internal/search"
)

// Searcher ranks stored chunks against a query vector.
type Searcher interface {
	Search(ctx context.Context, query model.Vector, topK int, scope repository.Scope) ([]search.Result, error)
}

// Generator answers a question from retrieved context.
type Generator interface {
	GenerateResponse(ctx context.Context, in llm.GenerateInput) (*llm.Response, error)
	StreamResponse(ctx context.Context, in llm.GenerateInput, sink llm.Sink) error
	DefaultModelFor(level string) (string, bool)
}

type QueryServiceConfig struct {
	TopK                int
	ConfidenceThreshold float64
}

type QueryService struct {
	userRepo  *repository.UserRepository
	prefRepo  *repository.PreferenceRepository
	embedder  embedding.Embedder
	searcher  Searcher
	generator Generator
	cfg       QueryServiceConfig
	logger    *zap.Logger
}

func NewQueryService(
	userRepo *repository.UserRepository,
	prefRepo *repository.PreferenceRepository,
	embedder embedding.Embedder,
	searcher Searcher,
	generator Generator,
	cfg QueryServiceConfig,
	log *zap.Logger,
) *QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = search.DefaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryService{
		userRepo:  userRepo,
		prefRepo:  prefRepo,
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		cfg:       cfg,
		logger:    log,
	}
}

type QueryInput struct {
	UserID              uint
	Query               string
	ModelID             string
	DocumentIDs         []uint
	ConfidenceThreshold *float64
	TopK                int
}

type Source struct {
	DocumentID uint    `json:"document_id"`
	Title      string  `json:"title"`
	ChunkID    uint    `json:"chunk_id"`
	Score      float64 `json:"score"`
}

type QueryResult struct {
	Response         string    `json:"response"`
	Confidence       float64   `json:"confidence"`
	Sources          []Source  `json:"sources"`
	Citations        []string  `json:"citations"`
	NeedsHumanReview bool      `json:"needs_human_review"`
	ModelID          string    `json:"model_id"`
	Provider         string    `json:"provider"`
	Usage            llm.Usage `json:"usage"`
}

// QuerySink receives a streamed answer. Exactly one of OnComplete or OnError
// is called.
type QuerySink interface {
	OnChunk(text string) error
	OnComplete(result QueryResult)
	OnError(err error)
}

type queryPlan struct {
	input     llm.GenerateInput
	sources   []Source
	threshold float64
}

// Query embeds the question, retrieves the caller's most similar chunks and
// asks the selected model. An empty retrieval still reaches the model.
func (s *QueryService) Query(ctx context.Context, in QueryInput) (*QueryResult, error) {
	plan, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	resp, err := s.generator.GenerateResponse(ctx, plan.input)
	if err != nil {
		return nil, err
	}
	result := plan.result(*resp)
	return &result, nil
}

// Stream is Query with incremental delivery through sink. The returned error
// mirrors the one passed to sink.OnError.
func (s *QueryService) Stream(ctx context.Context, in QueryInput, sink QuerySink) error {
	plan, err := s.prepare(ctx, in)
	if err != nil {
		sink.OnError(err)
		return err
	}
	return s.generator.StreamResponse(ctx, plan.input, &streamAdapter{plan: plan, sink: sink})
}

func (s *QueryService) prepare(ctx context.Context, in QueryInput) (*queryPlan, error) {
	query := strings.TrimSpace(in.Query)
	if in.UserID == 0 || query == "" {
		return nil, ErrInvalidInput
	}
	if in.TopK < 0 {
		return nil, fmt.Errorf("top_k must not be negative: %w", ErrInvalidInput)
	}
	threshold := s.cfg.ConfidenceThreshold
	if in.ConfidenceThreshold != nil {
		threshold = *in.ConfidenceThreshold
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("confidence_threshold must be in [0,1]: %w", ErrInvalidInput)
		}
	}
	topK := in.TopK
	if topK == 0 {
		topK = s.cfg.TopK
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	pref, err := s.prefRepo.GetByUserID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	gen := llm.GenerateInput{
		Query:             query,
		ModelID:           in.ModelID,
		SubscriptionLevel: user.SubscriptionLevel,
	}
	if pref != nil {
		temp := pref.Temperature
		gen.Temperature = &temp
		gen.MaxTokens = pref.MaxTokens
		if gen.ModelID == "" {
			gen.ModelID = pref.PreferredModelID
		}
	}
	if gen.ModelID == "" {
		if id, ok := s.generator.DefaultModelFor(user.SubscriptionLevel); ok {
			gen.ModelID = id
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := s.searcher.Search(ctx, vec, topK, repository.Scope{
		OwnerID:     in.UserID,
		DocumentIDs: in.DocumentIDs,
	})
	if err != nil {
		return nil, err
	}

	plan := &queryPlan{threshold: threshold, sources: make([]Source, 0, len(results))}
	for _, r := range results {
		gen.ContextChunks = append(gen.ContextChunks, r.Content)
		gen.CitationTitles = append(gen.CitationTitles, r.DocumentName)
		plan.sources = append(plan.sources, Source{
			DocumentID: r.DocumentID,
			Title:      r.DocumentName,
			ChunkID:    r.ChunkID,
			Score:      r.Score,
		})
	}
	plan.input = gen

	logger.FromContext(ctx, s.logger).Debug("query context retrieved",
		zap.Uint("user_id", in.UserID),
		zap.String("model", gen.ModelID),
		zap.Int("chunks", len(results)),
	)
	return plan, nil
}

func (p *queryPlan) result(resp llm.Response) QueryResult {
	return QueryResult{
		Response:         resp.Content,
		Confidence:       resp.Confidence,
		Sources:          p.sources,
		Citations:        resp.Citations,
		NeedsHumanReview: resp.Confidence < p.threshold,
		ModelID:          resp.ModelID,
		Provider:         resp.Provider,
		Usage:            resp.Usage,
	}
}

type streamAdapter struct {
	plan *queryPlan
	sink QuerySink
}

func (a *streamAdapter) OnChunk(text string) error { return a.sink.OnChunk(text) }

func (a *streamAdapter) OnComplete(resp llm.Response) { a.sink.OnComplete(a.plan.result(resp)) }

func (a *streamAdapter) OnError(err error) { a.sink.OnError(err) }
