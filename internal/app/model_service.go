package app

import (
	"context"

	"widgetrag/internal/llm"
	"widgetrag/internal/repository"
)

// ModelRouter is the part of the LLM router the model endpoints need.
type ModelRouter interface {
	GetAvailableModels() []llm.ModelDescriptor
	ModelsForLevel(level string) []llm.ModelDescriptor
	ListProviderModels(ctx context.Context, provider string) ([]string, error)
}

type ModelService struct {
	router   ModelRouter
	userRepo *repository.UserRepository
}

func NewModelService(router ModelRouter, userRepo *repository.UserRepository) *ModelService {
	return &ModelService{router: router, userRepo: userRepo}
}

func (s *ModelService) All() []llm.ModelDescriptor {
	return s.router.GetAvailableModels()
}

// Available lists the models the user's subscription may use right now.
func (s *ModelService) Available(ctx context.Context, userID uint) ([]llm.ModelDescriptor, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	models := s.router.ModelsForLevel(user.SubscriptionLevel)
	if models == nil {
		models = []llm.ModelDescriptor{}
	}
	return models, nil
}

func (s *ModelService) ProviderModels(ctx context.Context, provider string) ([]string, error) {
	return s.router.ListProviderModels(ctx, provider)
}
