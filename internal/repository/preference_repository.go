package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"widgetrag/internal/model"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetByUserID returns nil, nil when the user has no stored preference yet.
func (r *PreferenceRepository) GetByUserID(ctx context.Context, userID uint) (*model.UserLLMPreference, error) {
	var pref model.UserLLMPreference
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistErr("get llm preference", err)
	}
	return &pref, nil
}

// Upsert inserts or overwrites the user's preference row.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *model.UserLLMPreference) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferred_model_id", "temperature", "max_tokens", "enable_streaming", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return persistErr("upsert llm preference", err)
	}
	return nil
}
