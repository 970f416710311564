package service

import (
	"context"
	"errors"
	"time"

	autherrors "slotbook/internal/auth/errors"
	"slotbook/internal/auth/repository"
	"slotbook/internal/auth/token"
	"slotbook/internal/auth/validator"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, req *validator.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *validator.LoginRequest) (string, *model.User, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    *token.Manager
	validator *validator.UserValidator
	cfg       *config.Config
	log       *logger.Logger
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens *token.Manager,
	userValidator *validator.UserValidator,
	cfg *config.Config,
	log *logger.Logger,
) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		validator: userValidator,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req *validator.RegisterRequest) (*model.User, error) {
	if err := s.validator.ValidateRegister(req); err != nil {
		return nil, translateValidation(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, autherrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict(autherrors.ErrDuplicateEmail.Error())
		}
		return nil, apperrors.Internal("failed to create user", err)
	}

	s.log.Info("User registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *authService) Login(ctx context.Context, req *validator.LoginRequest) (string, *model.User, error) {
	if err := s.validator.ValidateLogin(req); err != nil {
		return "", nil, translateValidation(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			// Same response as a wrong password, so callers cannot probe
			// which emails are registered.
			return "", nil, apperrors.Unauthorized(autherrors.ErrInvalidCredentials.Error())
		}
		return "", nil, apperrors.Internal("failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, apperrors.Unauthorized(autherrors.ErrInvalidCredentials.Error())
	}

	tokenString, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, apperrors.Internal("failed to issue token", err)
	}

	s.log.Info("User logged in", "user_id", user.ID)
	return tokenString, user, nil
}

// Profile returns the authenticated caller's own user record.
func (s *authService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.Internal("failed to look up user", err)
	}
	return user, nil
}

func translateValidation(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]any, len(validationErrs))
		for _, v := range validationErrs {
			details[v.Field] = v.Message
		}
		return apperrors.Validation("invalid request", details)
	}
	return apperrors.InvalidInput(err.Error())
}
