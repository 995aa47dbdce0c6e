package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AmanCH3/hamro-grocery-backend/models"
	"github.com/AmanCH3/hamro-grocery-backend/pkg/logger"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
)

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"data"`
}

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *TokenService
	logger   *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, logger: logger}
}

// Register creates a normal user with an empty points balance.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, *ServiceError) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to hash password", zap.Error(err))
		return nil, internalError("Failed to create account")
	}

	user := &models.User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    req.Email,
		Password: string(hashed),
		Role:     models.RoleNormal,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, newError(http.StatusConflict, "User with this email already exists", ErrEmailTaken)
		}
		logger.For(ctx, s.logger).Error("Failed to create user", zap.Error(err))
		return nil, internalError("Failed to create account")
	}

	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, *ServiceError) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.For(ctx, s.logger).Error("Failed to load user", zap.Error(err))
			return nil, internalError("Failed to log in")
		}
		return nil, newError(http.StatusUnauthorized, "Invalid email or password", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, newError(http.StatusUnauthorized, "Invalid email or password", ErrInvalidCredentials)
	}
	return s.issue(ctx, user)
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, *ServiceError) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(http.StatusNotFound, "User not found", ErrUserNotFound)
		}
		logger.For(ctx, s.logger).Error("Failed to load profile", zap.Error(err))
		return nil, internalError("Failed to load profile")
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, *ServiceError) {
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to sign token", zap.Error(err))
		return nil, internalError("Failed to issue token")
	}
	return &AuthResult{Token: token, User: user}, nil
}
