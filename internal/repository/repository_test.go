package repository

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"widgetrag/internal/model"
	"widgetrag/internal/platform/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createDocument(t *testing.T, db *gorm.DB, ownerID uint, name string) *model.Document {
	t.Helper()
	doc := &model.Document{OwnerID: ownerID, Name: name, Content: "body", Status: model.DocumentStatusProcessing}
	if err := NewDocumentRepository(db).Create(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func inputs(texts ...string) []ChunkInput {
	out := make([]ChunkInput, len(texts))
	for i, s := range texts {
		out[i] = ChunkInput{Index: i, Content: s, Embedding: model.Vector{float32(i + 1), 1}}
	}
	return out
}

func markIndexed(t *testing.T, db *gorm.DB, ids ...uint) {
	t.Helper()
	docs := NewDocumentRepository(db)
	for _, id := range ids {
		if err := docs.MarkIndexed(context.Background(), id, model.Vector{1, 1}, 1); err != nil {
			t.Fatalf("mark indexed %d: %v", id, err)
		}
	}
}
