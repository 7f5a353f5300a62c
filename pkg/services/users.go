package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/repositories"
)

// SignupRequest carries the fields of a new account.
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is an issued access token.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserService defines the interface for account operations.
type UserService interface {
	// Signup returns repositories.ErrUsernameTaken or repositories.ErrEmailTaken on duplicates.
	Signup(ctx context.Context, req SignupRequest) (*models.User, error)
	// Login returns apperrors.ErrInvalidCredentials for unknown users and wrong passwords alike.
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	hasher   auth.PasswordHasher
	issuer   auth.TokenIssuer
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(
	userRepo repositories.UserRepository,
	hasher auth.PasswordHasher,
	issuer auth.TokenIssuer,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		hasher:   hasher,
		issuer:   issuer,
		logger:   logger.Named("users"),
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if n := len(username); n < models.MinUsernameLength || n > models.MaxUsernameLength {
		return nil, fmt.Errorf("username must be %d-%d characters: %w",
			models.MinUsernameLength, models.MaxUsernameLength, apperrors.ErrInvalidInput)
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil || addr.Name != "" {
		return nil, fmt.Errorf("invalid email address: %w", apperrors.ErrInvalidInput)
	}

	if n := len(req.Password); n < models.MinPasswordLength || n > models.MaxPasswordLength {
		return nil, fmt.Errorf("password must be %d-%d bytes: %w",
			models.MinPasswordLength, models.MaxPasswordLength, apperrors.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(addr.Address),
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User signed up",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("User logged in", zap.String("user_id", user.ID.String()))
	return &LoginResult{
		AccessToken: token,
		TokenType:   auth.TokenType,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
