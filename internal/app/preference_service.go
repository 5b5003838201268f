package app

import (
	"context"

	"widgetrag/internal/model"
	"widgetrag/internal/repository"
)

// Preference defaults and bounds.
const (
	DefaultPreferenceTemperature = 0.7
	DefaultPreferenceMaxTokens   = 800
	MinPreferenceMaxTokens       = 100
	MaxPreferenceMaxTokens       = 2000
)

// ModelCatalog answers tier questions about the model registry.
type ModelCatalog interface {
	IsModelAvailable(modelID, level string) bool
	DefaultModelFor(level string) (string, bool)
}

type PreferenceService struct {
	prefRepo     *repository.PreferenceRepository
	userRepo     *repository.UserRepository
	catalog      ModelCatalog
	defaultModel string
}

func NewPreferenceService(prefRepo *repository.PreferenceRepository, userRepo *repository.UserRepository, catalog ModelCatalog, defaultModel string) *PreferenceService {
	return &PreferenceService{
		prefRepo:     prefRepo,
		userRepo:     userRepo,
		catalog:      catalog,
		defaultModel: defaultModel,
	}
}

// UpdatePreferenceInput leaves fields untouched when nil.
type UpdatePreferenceInput struct {
	PreferredModelID *string
	Temperature      *float64
	MaxTokens        *int
	EnableStreaming  *bool
}

// Get returns the user's preferences, creating the defaults on first use.
func (s *PreferenceService) Get(ctx context.Context, userID uint) (*model.UserLLMPreference, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	pref, err := s.prefRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		return pref, nil
	}

	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	pref = &model.UserLLMPreference{
		UserID:           userID,
		PreferredModelID: s.modelFor(s.defaultModel, user.SubscriptionLevel),
		Temperature:      DefaultPreferenceTemperature,
		MaxTokens:        DefaultPreferenceMaxTokens,
	}
	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	return s.prefRepo.GetByUserID(ctx, userID)
}

// Update applies the given fields. Temperature and max tokens are clamped; a
// model the user's tier cannot use is replaced by the tier's default.
func (s *PreferenceService) Update(ctx context.Context, userID uint, in UpdatePreferenceInput) (*model.UserLLMPreference, error) {
	pref, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.PreferredModelID != nil {
		pref.PreferredModelID = s.modelFor(*in.PreferredModelID, user.SubscriptionLevel)
	}
	if in.Temperature != nil {
		pref.Temperature = clamp(*in.Temperature, 0, 1)
	}
	if in.MaxTokens != nil {
		pref.MaxTokens = int(clamp(float64(*in.MaxTokens), MinPreferenceMaxTokens, MaxPreferenceMaxTokens))
	}
	if in.EnableStreaming != nil {
		pref.EnableStreaming = *in.EnableStreaming
	}
	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	return s.prefRepo.GetByUserID(ctx, userID)
}

func (s *PreferenceService) user(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *PreferenceService) modelFor(requested, level string) string {
	if s.catalog.IsModelAvailable(requested, level) {
		return requested
	}
	if id, ok := s.catalog.DefaultModelFor(level); ok {
		return id
	}
	return requested
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
