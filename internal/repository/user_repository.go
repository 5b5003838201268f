package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"widgetrag/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return persistErr("create user", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "query user by username", "username = ?", username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "query user by email", "email = ?", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	return r.first(ctx, "query user by id", "id = ?", id)
}

// UpdateAccess sets role and subscription level. Empty values are left as
// they are. It reports whether a user with id exists.
func (r *UserRepository) UpdateAccess(ctx context.Context, id uint, role, level string) (bool, error) {
	updates := map[string]any{}
	if role != "" {
		updates["role"] = role
	}
	if level != "" {
		updates["subscription_level"] = level
	}
	if len(updates) == 0 {
		user, err := r.GetByID(ctx, id)
		return user != nil, err
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return false, persistErr("update user access", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PromoteAdmins gives the admin role to each named user that exists.
func (r *UserRepository) PromoteAdmins(ctx context.Context, usernames []string) (int64, error) {
	if len(usernames) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("username IN ? AND role <> ?", usernames, model.RoleAdmin).
		Update("role", model.RoleAdmin)
	if res.Error != nil {
		return 0, persistErr("promote admins", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *UserRepository) first(ctx context.Context, op, query string, arg any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistErr(op, err)
	}
	return &user, nil
}
