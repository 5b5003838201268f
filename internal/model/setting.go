package model

import "time"

// SettingSystemPrompt holds the admin-editable prompt sent ahead of every
// question.
const SettingSystemPrompt = "system_prompt"

// Setting is one runtime-editable key/value pair.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
