// Package search ranks stored chunks against a query vector.
package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
	"widgetrag/internal/repository"
)

const DefaultTopK = 5

type CandidateSource interface {
	ListSearchCandidates(ctx context.Context, scope repository.Scope) ([]repository.Candidate, error)
}

type Result struct {
	ChunkID      uint    `json:"chunk_id"`
	DocumentID   uint    `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

type Service struct {
	source   CandidateSource
	minScore float64
	logger   *zap.Logger
}

// NewService builds a search service. Results scoring below minScore are
// dropped; zero keeps everything.
func NewService(source CandidateSource, minScore float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, minScore: minScore, logger: logger}
}

// Search returns up to topK chunks by descending cosine similarity. Ties go to
// the earlier-created chunk, then the lower chunk id.
func (s *Service) Search(ctx context.Context, query model.Vector, topK int, scope repository.Scope) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d: %w", topK, domain.ErrInvalidArgument)
	}
	if query.IsZero() {
		return nil, fmt.Errorf("query vector has zero magnitude: %w", domain.ErrInvalidArgument)
	}

	candidates, err := s.source.ListSearchCandidates(ctx, scope)
	if err != nil {
		return nil, err
	}

	type scored struct {
		c     repository.Candidate
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		score, ok := Cosine(query, c.Embedding)
		if !ok {
			skipped++
			continue
		}
		if s.minScore > 0 && score < s.minScore {
			continue
		}
		ranked = append(ranked, scored{c: c, score: score})
	}
	if skipped > 0 {
		s.logger.Debug("search skipped unusable chunk vectors",
			zap.Int("skipped", skipped),
			zap.Int("query_dimensions", len(query)),
		)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.c.CreatedAt.Equal(b.c.CreatedAt) {
			return a.c.CreatedAt.Before(b.c.CreatedAt)
		}
		return a.c.ChunkID < b.c.ChunkID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]Result, len(ranked))
	for i, r := range ranked {
		out[i] = Result{
			ChunkID:      r.c.ChunkID,
			DocumentID:   r.c.DocumentID,
			DocumentName: r.c.DocumentName,
			ChunkIndex:   r.c.ChunkIndex,
			Content:      r.c.Content,
			Score:        r.score,
		}
	}
	return out, nil
}
