package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Subscription levels, ordered free < basic < premium.
const (
	SubscriptionFree    = "free"
	SubscriptionBasic   = "basic"
	SubscriptionPremium = "premium"
)

type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Username          string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email             string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash      string    `gorm:"size:255;not null" json:"-"`
	Role              string    `gorm:"size:16;not null;default:user" json:"role"`
	SubscriptionLevel string    `gorm:"size:16;not null;default:free" json:"subscription_level"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
