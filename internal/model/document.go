package model

import "time"

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusIndexed    = "indexed"
	DocumentStatusError      = "error"
)

// Document is an uploaded text source. Embedding is the document-level
// aggregate (mean of its chunk vectors), kept apart from the chunks.
type Document struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OwnerID            uint       `gorm:"not null;index" json:"owner_id"`
	Name               string     `gorm:"size:256;not null" json:"name"`
	ContentType        string     `gorm:"size:128" json:"content_type"`
	Content            string     `gorm:"not null" json:"-"`
	Status             string     `gorm:"size:16;not null;index;default:processing" json:"status"`
	EmbeddingProcessed bool       `gorm:"not null;default:false" json:"embedding_processed"`
	ErrorMessage       string     `gorm:"type:text" json:"error_message,omitempty"`
	ChunkCount         int        `gorm:"not null;default:0" json:"chunk_count"`
	Embedding          Vector     `json:"-"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
