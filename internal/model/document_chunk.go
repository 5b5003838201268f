package model

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentChunk is one retrievable piece of a document. A nil Embedding means
// the chunk was never embedded and is invisible to search.
type DocumentChunk struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	DocumentID uint           `gorm:"not null;uniqueIndex:idx_chunk_document_index,priority:1" json:"document_id"`
	ChunkIndex int            `gorm:"not null;uniqueIndex:idx_chunk_document_index,priority:2" json:"chunk_index"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	Embedding  Vector         `json:"-"`
	Metadata   datatypes.JSON `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChunkMetadata is the shape stored in DocumentChunk.Metadata.
type ChunkMetadata struct {
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	ChunkSize  int    `json:"chunk_size"`
	Overlap    int    `json:"chunk_overlap"`
}
