package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"widgetrag/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return persistErr("create document", err)
	}
	return nil
}

// GetByID returns nil, nil when the document does not exist.
func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistErr("get document", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).
		Omit("content").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, persistErr("list documents", err)
	}
	return list, nil
}

// ResetForReprocess drops the chunks and returns the document to processing
// in one transaction. It reports the number of chunks removed.
func (r *DocumentRepository) ResetForReprocess(ctx context.Context, id uint) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteChunks(tx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]any{
			"status":              model.DocumentStatusProcessing,
			"embedding_processed": false,
			"error_message":       "",
			"chunk_count":         0,
			"embedding":           nil,
			"processed_at":        nil,
		}).Error
	})
	if err != nil {
		return 0, persistErr("reset document for reprocess", err)
	}
	return removed, nil
}

// MarkIndexed stores the document-level vector and flips the document to indexed.
func (r *DocumentRepository) MarkIndexed(ctx context.Context, id uint, vector model.Vector, chunkCount int) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(map[string]any{
		"status":              model.DocumentStatusIndexed,
		"embedding_processed": true,
		"error_message":       "",
		"chunk_count":         chunkCount,
		"embedding":           vector,
		"processed_at":        &now,
	}).Error
	if err != nil {
		return persistErr("mark document indexed", err)
	}
	return nil
}

func (r *DocumentRepository) MarkError(ctx context.Context, id uint, message string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(map[string]any{
		"status":              model.DocumentStatusError,
		"embedding_processed": false,
		"error_message":       message,
		"processed_at":        &now,
	}).Error
	if err != nil {
		return persistErr("mark document error", err)
	}
	return nil
}

// Delete removes the document and its chunks together. It returns false when
// nothing matched.
func (r *DocumentRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var found bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteChunks(tx, id); err != nil {
			return err
		}
		res := tx.Delete(&model.Document{}, id)
		if res.Error != nil {
			return res.Error
		}
		found = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, persistErr("delete document", err)
	}
	return found, nil
}
