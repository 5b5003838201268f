package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

// ChunkInput is one chunk handed to SaveChunks. Index must run 0..n-1.
type ChunkInput struct {
	Index     int
	Content   string
	Embedding model.Vector
	Metadata  datatypes.JSON
}

// Scope narrows search candidates. Zero values mean "no restriction".
type Scope struct {
	OwnerID     uint
	DocumentIDs []uint
}

// Candidate is a chunk row joined with its document name.
type Candidate struct {
	ChunkID      uint
	DocumentID   uint
	DocumentName string
	ChunkIndex   int
	Content      string
	Embedding    model.Vector
	CreatedAt    time.Time
}

// ChunkRepository is the vector store: chunk text plus embedding per document.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// SaveChunks replaces the document's chunk set in one transaction. Readers
// see either the old set or the new one.
func (r *ChunkRepository) SaveChunks(ctx context.Context, documentID uint, chunks []ChunkInput) error {
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("chunk indices must be contiguous from 0, got %d at position %d: %w", c.Index, i, domain.ErrInvalidArgument)
		}
	}

	rows := make([]model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		meta := c.Metadata
		if len(meta) == 0 {
			meta = datatypes.JSON("{}")
		}
		rows[i] = model.DocumentChunk{
			DocumentID: documentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  c.Embedding,
			Metadata:   meta,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteChunks(tx, documentID); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		return persistErr("save chunks", err)
	}
	return nil
}

// DeleteChunks removes every chunk of the document and reports how many went.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, documentID uint) (int64, error) {
	n, err := deleteChunks(r.db.WithContext(ctx), documentID)
	if err != nil {
		return 0, persistErr("delete chunks", err)
	}
	return n, nil
}

// deleteChunks runs on tx so it can join a caller's transaction.
func deleteChunks(tx *gorm.DB, documentID uint) (int64, error) {
	res := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{})
	return res.RowsAffected, res.Error
}

// GetChunksForDocument returns the chunks ordered by index.
func (r *ChunkRepository) GetChunksForDocument(ctx context.Context, documentID uint) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, persistErr("get chunks for document", err)
	}
	return chunks, nil
}

// ListSearchCandidates returns every embedded chunk inside scope whose
// document is indexed. Chunks of documents still processing or marked error
// are never served.
func (r *ChunkRepository) ListSearchCandidates(ctx context.Context, scope Scope) ([]Candidate, error) {
	q := r.db.WithContext(ctx).
		Table("document_chunks AS c").
		Select("c.id AS chunk_id, c.document_id, d.name AS document_name, c.chunk_index, c.content, c.embedding, c.created_at").
		Joins("JOIN documents AS d ON d.id = c.document_id").
		Where("c.embedding IS NOT NULL").
		Where("d.status = ?", model.DocumentStatusIndexed)
	if scope.OwnerID != 0 {
		q = q.Where("d.owner_id = ?", scope.OwnerID)
	}
	if len(scope.DocumentIDs) > 0 {
		q = q.Where("c.document_id IN ?", scope.DocumentIDs)
	}

	var out []Candidate
	if err := q.Order("c.id ASC").Scan(&out).Error; err != nil {
		return nil, persistErr("list search candidates", err)
	}
	return out, nil
}
