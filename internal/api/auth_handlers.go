package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/taleforge/taleforge/internal/api/dto"
	"github.com/taleforge/taleforge/internal/domain"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns an access token",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register new user",
		Description: "Creates an account and returns an access token for it",
		Tags:        []string{"Authentication"},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current user",
		Description: "Returns the user the bearer token belongs to",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMe)
}

// LoginInput wraps the login request for huma.
type LoginInput struct {
	Body dto.LoginRequest
}

// RegisterInput wraps the register request for huma.
type RegisterInput struct {
	Body dto.RegisterRequest
}

// AuthOutput wraps the token and user for huma.
type AuthOutput struct {
	Body dto.AuthResponse
}

// UserOutput wraps a user for huma.
type UserOutput struct {
	Body dto.User
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	res, err := s.services.Auth.Login(ctx, domain.Credentials{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: dto.AuthResponseOf(res)}, nil
}

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	res, err := s.services.Auth.Register(ctx, input.Body.Profile())
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", res.User.ID, "username", res.User.Username)
	return &AuthOutput{Body: dto.AuthResponseOf(res)}, nil
}

func (s *Server) handleMe(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: dto.UserOf(*viewer)}, nil
}
