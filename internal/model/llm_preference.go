package model

import "time"

type UserLLMPreference struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	UserID           uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	PreferredModelID string    `gorm:"size:128;not null" json:"preferred_model_id"`
	Temperature      float64   `gorm:"not null" json:"temperature"`
	MaxTokens        int       `gorm:"not null" json:"max_tokens"`
	EnableStreaming  bool      `gorm:"not null;default:false" json:"enable_streaming"`
	UpdatedAt        time.Time `json:"updated_at"`
}
