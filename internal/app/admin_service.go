package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"widgetrag/internal/llm"
	"widgetrag/internal/model"
	"widgetrag/internal/repository"
)

// MaxSystemPromptRunes bounds an admin-supplied system prompt.
const MaxSystemPromptRunes = 8000

// PromptHolder is the live system prompt used for generation.
type PromptHolder interface {
	SystemPrompt() string
	SetSystemPrompt(prompt string)
}

// AdminService covers operator settings and account access. Every method
// requires an admin actor.
type AdminService struct {
	settings *repository.SettingRepository
	userRepo *repository.UserRepository
	prompt   PromptHolder
	logger   *zap.Logger
}

func NewAdminService(settings *repository.SettingRepository, userRepo *repository.UserRepository, prompt PromptHolder, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{settings: settings, userRepo: userRepo, prompt: prompt, logger: log}
}

// LoadSystemPrompt applies a stored prompt over the configured one. It runs
// once at startup.
func (s *AdminService) LoadSystemPrompt(ctx context.Context) error {
	stored, err := s.settings.Get(ctx, model.SettingSystemPrompt)
	if err != nil {
		return err
	}
	if stored != nil && strings.TrimSpace(stored.Value) != "" {
		s.prompt.SetSystemPrompt(stored.Value)
	}
	return nil
}

// SystemPrompt returns the prompt in effect, falling back to the built-in one.
func (s *AdminService) SystemPrompt(ctx context.Context, actor Actor) (string, error) {
	if !actor.isAdmin() {
		return "", ErrNotAdmin
	}
	if p := s.prompt.SystemPrompt(); strings.TrimSpace(p) != "" {
		return p, nil
	}
	return llm.DefaultSystemPrompt, nil
}

// UpdateSystemPrompt persists prompt and applies it to the next request.
func (s *AdminService) UpdateSystemPrompt(ctx context.Context, actor Actor, prompt string) (*model.Setting, error) {
	if !actor.isAdmin() {
		return nil, ErrNotAdmin
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("system prompt is empty: %w", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(prompt); n > MaxSystemPromptRunes {
		return nil, fmt.Errorf("system prompt has %d characters, limit is %d: %w", n, MaxSystemPromptRunes, ErrInvalidInput)
	}

	setting, err := s.settings.Set(ctx, model.SettingSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	s.prompt.SetSystemPrompt(prompt)
	s.logger.Info("system prompt updated", zap.Uint("admin_id", actor.UserID), zap.Int("runes", utf8.RuneCountInString(prompt)))
	return setting, nil
}

// UpdateUserInput leaves fields untouched when nil.
type UpdateUserInput struct {
	Role              *string
	SubscriptionLevel *string
}

// UpdateUser changes a user's role or subscription level. A new role reaches
// the user's token on their next login.
func (s *AdminService) UpdateUser(ctx context.Context, actor Actor, id uint, input UpdateUserInput) (*model.User, error) {
	if !actor.isAdmin() {
		return nil, ErrNotAdmin
	}
	if id == 0 || (input.Role == nil && input.SubscriptionLevel == nil) {
		return nil, ErrInvalidInput
	}

	var role, level string
	if input.Role != nil {
		role = *input.Role
		if role != model.RoleUser && role != model.RoleAdmin {
			return nil, fmt.Errorf("unknown role %q: %w", role, ErrInvalidInput)
		}
		if id == actor.UserID && role != model.RoleAdmin {
			return nil, fmt.Errorf("admins cannot demote themselves: %w", ErrInvalidInput)
		}
	}
	if input.SubscriptionLevel != nil {
		level = *input.SubscriptionLevel
		if !llm.ValidTier(level) {
			return nil, fmt.Errorf("unknown subscription level %q: %w", level, ErrInvalidInput)
		}
	}

	found, err := s.userRepo.UpdateAccess(ctx, id, role, level)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	s.logger.Info("user access updated",
		zap.Uint("admin_id", actor.UserID),
		zap.Uint("user_id", id),
		zap.String("role", user.Role),
		zap.String("subscription_level", user.SubscriptionLevel),
	)
	return user, nil
}
