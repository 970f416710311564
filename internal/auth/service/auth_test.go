package service

import (
	"context"
	"testing"
	"time"

	autherrors "slotbook/internal/auth/errors"
	"slotbook/internal/auth/token"
	"slotbook/internal/auth/validator"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepository struct {
	insertFunc      func(ctx context.Context, user *model.User) error
	findByEmailFunc func(ctx context.Context, email string) (*model.User, error)
	findByIDFunc    func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepository) Insert(ctx context.Context, user *model.User) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, autherrors.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, autherrors.ErrUserNotFound
}

func testService(repo *mockUserRepository) AuthService {
	log := logger.New(logger.Config{Level: "error", Format: logger.TEXT, Service: "test"})
	cfg := &config.Config{
		BcryptCost:  bcrypt.MinCost,
		JWTSecret:   "test-secret",
		JWTTokenTTL: time.Hour,
		Log:         log,
	}
	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL, log)
	return NewAuthService(repo, tokens, validator.NewUserValidator(log), cfg, log)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, appErr.Code, err)
	}
}

func TestRegister_HashesPasswordAndNormalizesEmail(t *testing.T) {
	var inserted *model.User
	repo := &mockUserRepository{
		insertFunc: func(ctx context.Context, user *model.User) error {
			inserted = user
			return nil
		},
	}
	svc := testService(repo)

	user, err := svc.Register(context.Background(), &validator.RegisterRequest{
		Name:     "  Alice  ",
		Email:    "Alice@Example.COM",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register: unexpected error: %v", err)
	}

	if inserted == nil {
		t.Fatal("expected user to be inserted")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("expected lowercased email, got %s", user.Email)
	}
	if user.Name != "Alice" {
		t.Errorf("expected trimmed name, got %q", user.Name)
	}
	if user.PasswordHash == "correct-horse" || user.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	repo := &mockUserRepository{
		insertFunc: func(ctx context.Context, user *model.User) error {
			return autherrors.ErrDuplicateEmail
		},
	}
	svc := testService(repo)

	_, err := svc.Register(context.Background(), &validator.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	svc := testService(&mockUserRepository{})

	_, err := svc.Register(context.Background(), &validator.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "short",
	})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestLogin_IssuesToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	repo := &mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{
				ID:           "u1",
				Name:         "Alice",
				Email:        email,
				PasswordHash: string(hash),
			}, nil
		},
	}
	svc := testService(repo)

	tokenString, user, err := svc.Login(context.Background(), &validator.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: unexpected error: %v", err)
	}
	if tokenString == "" {
		t.Error("expected a token")
	}
	if user.ID != "u1" {
		t.Errorf("expected user u1, got %s", user.ID)
	}
}

func TestLogin_WrongPasswordUnauthorized(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	repo := &mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "u1", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	svc := testService(repo)

	_, _, err := svc.Login(context.Background(), &validator.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	svc := testService(&mockUserRepository{})

	_, _, err := svc.Login(context.Background(), &validator.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestProfile_ReturnsOwnRecord(t *testing.T) {
	want := &model.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
	svc := testService(&mockUserRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			if id != "u1" {
				t.Errorf("expected lookup for u1, got %s", id)
			}
			return want, nil
		},
	})

	user, err := svc.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile: unexpected error: %v", err)
	}
	if user.Email != want.Email {
		t.Errorf("expected %s, got %s", want.Email, user.Email)
	}
}

func TestProfile_UnknownUserNotFound(t *testing.T) {
	svc := testService(&mockUserRepository{})

	_, err := svc.Profile(context.Background(), "ghost")
	assertCode(t, err, apperrors.CodeNotFound)
}
