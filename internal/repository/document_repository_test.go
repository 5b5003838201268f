package repository

import (
	"context"
	"testing"

	"widgetrag/internal/model"
)

func TestDocumentRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	chunks := NewChunkRepository(db)
	ctx := context.Background()
	doc := createDocument(t, db, 7, "policy.md")

	if err := chunks.SaveChunks(ctx, doc.ID, inputs("a", "b")); err != nil {
		t.Fatalf("save chunks: %v", err)
	}
	if err := docs.MarkIndexed(ctx, doc.ID, model.Vector{0.5, 0.5}, 2); err != nil {
		t.Fatalf("mark indexed: %v", err)
	}

	got, err := docs.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.DocumentStatusIndexed || !got.EmbeddingProcessed || got.ChunkCount != 2 {
		t.Fatalf("unexpected indexed document %+v", got)
	}
	if len(got.Embedding) != 2 || got.ProcessedAt == nil {
		t.Fatalf("document vector not stored: %+v", got)
	}

	removed, err := docs.ResetForReprocess(ctx, doc.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if removed != 2 {
		t.Fatalf("reset removed %d chunks, want 2", removed)
	}
	got, _ = docs.GetByID(ctx, doc.ID)
	if got.Status != model.DocumentStatusProcessing || got.EmbeddingProcessed || got.Embedding != nil {
		t.Fatalf("document not reset: %+v", got)
	}

	if err := docs.MarkError(ctx, doc.ID, "embedding service unavailable"); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	got, _ = docs.GetByID(ctx, doc.ID)
	if got.Status != model.DocumentStatusError || got.ErrorMessage == "" {
		t.Fatalf("document not in error: %+v", got)
	}
}

func TestDocumentRepository_DeleteRemovesChunks(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	chunks := NewChunkRepository(db)
	ctx := context.Background()
	doc := createDocument(t, db, 1, "doc")

	if err := chunks.SaveChunks(ctx, doc.ID, inputs("a", "b")); err != nil {
		t.Fatalf("save chunks: %v", err)
	}
	found, err := docs.Delete(ctx, doc.ID)
	if err != nil || !found {
		t.Fatalf("delete = %v, %v", found, err)
	}
	left, _ := chunks.GetChunksForDocument(ctx, doc.ID)
	if len(left) != 0 {
		t.Fatalf("%d chunks left after delete", len(left))
	}
	if got, _ := docs.GetByID(ctx, doc.ID); got != nil {
		t.Fatalf("document still present: %+v", got)
	}
	found, err = docs.Delete(ctx, doc.ID)
	if err != nil || found {
		t.Fatalf("second delete = %v, %v", found, err)
	}
}

func TestDocumentRepository_ListByOwner(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	createDocument(t, db, 1, "a")
	createDocument(t, db, 1, "b")
	createDocument(t, db, 2, "c")

	list, err := docs.ListByOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d documents, want 2", len(list))
	}
	for _, d := range list {
		if d.OwnerID != 1 {
			t.Fatalf("foreign document listed: %+v", d)
		}
	}
}

func TestPreferenceRepository_Upsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	if got, err := repo.GetByUserID(ctx, 3); err != nil || got != nil {
		t.Fatalf("missing preference = %+v, %v", got, err)
	}
	if err := repo.Upsert(ctx, &model.UserLLMPreference{UserID: 3, PreferredModelID: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 800}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Upsert(ctx, &model.UserLLMPreference{UserID: 3, PreferredModelID: "deepseek-chat", Temperature: 0.2, MaxTokens: 1200, EnableStreaming: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByUserID(ctx, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PreferredModelID != "deepseek-chat" || got.MaxTokens != 1200 || !got.EnableStreaming {
		t.Fatalf("upsert did not overwrite: %+v", got)
	}
}
