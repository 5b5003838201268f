package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"widgetrag/internal/model"
	"widgetrag/internal/pkg/jwtutil"
	"widgetrag/internal/repository"
)

func TestAuthService_RegisterLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(repository.NewUserRepository(db), "secret", time.Hour)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Email != "alice@example.com" || res.User.SubscriptionLevel != model.SubscriptionFree || res.User.Role != model.RoleUser {
		t.Fatalf("user = %+v", res.User)
	}
	claims, err := jwtutil.ParseToken("secret", res.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != res.User.ID || claims.Role != model.RoleUser {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "password123"}); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("duplicate username err = %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "password123"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate email err = %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short password err = %v", err)
	}

	if _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "password123"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	me, err := svc.GetUserByID(ctx, res.User.ID)
	if err != nil || me == nil || me.Username != "alice" {
		t.Fatalf("GetUserByID = %+v, %v", me, err)
	}
}

func TestModelService_Available(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, "llama3.2:latest", &fakeProvider{name: "local"}, &fakeProvider{name: "openai"})
	svc := NewModelService(router, repository.NewUserRepository(db))
	free := createUser(t, db, "free", model.SubscriptionFree)
	premium := createUser(t, db, "rich", model.SubscriptionPremium)
	ctx := context.Background()

	freeModels, err := svc.Available(ctx, free.ID)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	for _, m := range freeModels {
		if m.Tier != model.SubscriptionFree {
			t.Fatalf("free user offered %s (%s)", m.ID, m.Tier)
		}
	}
	premiumModels, _ := svc.Available(ctx, premium.ID)
	// 3 local + 2 openai; anthropic and deepseek are not configured.
	if len(freeModels) != 3 || len(premiumModels) != 5 {
		t.Fatalf("free=%d premium=%d", len(freeModels), len(premiumModels))
	}
	if len(svc.All()) != 9 {
		t.Fatalf("catalog size = %d", len(svc.All()))
	}
	if _, err := svc.Available(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestAuthService_ConfiguredAdmins(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	ctx := context.Background()
	existing := createUser(t, db, "ops", model.SubscriptionFree)

	svc := NewAuthService(users, "secret", time.Hour, "root", " ops ")
	res, err := svc.Register(ctx, RegisterInput{Username: "root", Email: "root@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Role != model.RoleAdmin {
		t.Fatalf("role = %q, want admin", res.User.Role)
	}
	claims, err := jwtutil.ParseToken("secret", res.Token)
	if err != nil || claims.Role != model.RoleAdmin {
		t.Fatalf("claims = %+v, %v", claims, err)
	}

	if n, err := svc.PromoteAdmins(ctx); err != nil || n != 1 {
		t.Fatalf("PromoteAdmins = %d, %v", n, err)
	}
	got, _ := users.GetByID(ctx, existing.ID)
	if got.Role != model.RoleAdmin {
		t.Fatalf("existing user role = %q", got.Role)
	}
}
