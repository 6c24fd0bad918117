package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"salesledger/internal/apperr"
	"salesledger/internal/config"
	"salesledger/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func newTestUserService() (UserService, *memStore) {
	store := newMemStore()
	return NewUserService(memUserRepo{store}, testSecret, time.Hour), store
}

func TestCreateUserAndLogin(t *testing.T) {
	svc, store := newTestUserService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "manager01",
		Email:    "Manager01@Example.com",
		Password: "s3cret!",
		Role:     model.RoleManager,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Email != "manager01@example.com" || user.Role != model.RoleManager {
		t.Errorf("unexpected user %+v", user)
	}
	if stored := store.state.users[user.ID]; stored.Password == "s3cret!" {
		t.Error("password must be stored hashed")
	}

	token, err := svc.Login(ctx, LoginUserRequest{Username: "manager01", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token.Token, claims, func(*jwt.Token) (interface{}, error) { return testSecret, nil }); err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims["sub"] != user.ID.String() || claims["role"] != model.RoleManager {
		t.Errorf("unexpected claims %v", claims)
	}
	if time.Until(token.ExpiresAt) <= 0 {
		t.Errorf("token already expired at %s", token.ExpiresAt)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()
	if _, err := svc.CreateUser(ctx, CreateUserRequest{Username: "sales01", Email: "s@example.com", Password: "pa55word", Role: model.RoleSales}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for _, req := range []LoginUserRequest{
		{Username: "sales01", Password: "wrong"},
		{Username: "nobody", Password: "pa55word"},
	} {
		if _, err := svc.Login(ctx, req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%s): expected ErrInvalidCredentials, got %v", req.Username, err)
		}
	}
}

func TestCreateUser_Rejections(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{Username: "x", Email: "x@example.com", Password: "123456", Role: "owner"})
	assertKind(t, err, apperr.ErrConstraintViolation)

	if _, err := svc.CreateUser(ctx, CreateUserRequest{Username: "x", Email: "x@example.com", Password: "123456", Role: model.RoleSales}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "x", Email: "y@example.com", Password: "123456", Role: model.RoleSales})
	assertKind(t, err, apperr.ErrConstraintViolation)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()

	svc, store := newTestUserService()
	if err := svc.EnsureAdmin(ctx, config.AdminConfig{Username: "admin", Email: "admin@example.com"}); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	if len(store.state.users) != 0 {
		t.Fatal("no admin may be seeded without a password")
	}

	admin := config.AdminConfig{Username: "admin", Email: "admin@example.com", Password: "change-me"}
	if err := svc.EnsureAdmin(ctx, admin); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, admin); err != nil {
		t.Fatalf("second EnsureAdmin failed: %v", err)
	}
	if len(store.state.users) != 1 {
		t.Fatalf("expected exactly one seeded user, got %d", len(store.state.users))
	}
	for _, u := range store.state.users {
		if u.Role != model.RoleAdmin {
			t.Errorf("expected admin role, got %s", u.Role)
		}
	}

	users, total, err := svc.ListUsers(ctx, 1, 10)
	if err != nil || total != 1 || len(users) != 1 {
		t.Errorf("ListUsers: %v total=%d %+v", err, total, users)
	}
	if _, err := svc.GetUserByID(ctx, users[0].ID); err != nil {
		t.Errorf("GetUserByID failed: %v", err)
	}
}
