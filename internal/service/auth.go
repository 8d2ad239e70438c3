package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taleforge/taleforge/internal/auth"
	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

// AuthService registers accounts, logs users in and resolves bearer tokens.
type AuthService struct {
	store     *store.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(s *store.Store, tokens *auth.TokenService, v *validation.Validator, log *slog.Logger) *AuthService {
	return &AuthService{
		store:     s,
		tokens:    tokens,
		validator: v,
		logger:    logger.OrDiscard(log),
	}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, p domain.RegisterProfile) (domain.AuthResult, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = domain.NormalizeEmail(p.Email)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Bio = strings.TrimSpace(p.Bio)
	if err := s.validator.Validate(p); err != nil {
		return domain.AuthResult{}, err
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		UserSummary: domain.UserSummary{
			Username:    p.Username,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			Bio:         p.Bio,
			Roles:       []string{domain.RoleUser},
		},
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return domain.AuthResult{}, mapStoreError(err, "create user")
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return s.issue(u.UserSummary)
}

// Login checks credentials and returns a fresh token. Unknown emails and wrong
// passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, c domain.Credentials) (domain.AuthResult, error) {
	c.Email = domain.NormalizeEmail(c.Email)
	if err := s.validator.Validate(c); err != nil {
		return domain.AuthResult{}, err
	}

	u, err := s.store.UserByEmail(ctx, c.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		return domain.AuthResult{}, domainerrors.InvalidCredentials("invalid email or password")
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(u.PasswordHash, c.Password) {
		s.logger.Info("login rejected", "user_id", u.ID)
		return domain.AuthResult{}, domainerrors.InvalidCredentials("invalid email or password")
	}

	s.logger.Info("user logged in", "user_id", u.ID)
	return s.issue(u.UserSummary)
}

func (s *AuthService) issue(u domain.UserSummary) (domain.AuthResult, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return domain.AuthResult{Token: token, User: u}, nil
}

// Verify resolves a bearer token to its user. Any failure is Unauthorized.
func (s *AuthService) Verify(ctx context.Context, token string) (domain.UserSummary, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.UserSummary{}, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}
	u, err := s.store.User(ctx, claims.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return domain.UserSummary{}, domainerrors.Unauthorized("account no longer exists")
	}
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("get user: %w", err)
	}
	return u.UserSummary, nil
}
