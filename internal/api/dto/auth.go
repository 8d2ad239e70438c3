package dto

import "github.com/taleforge/taleforge/internal/domain"

// User is the public view of an account.
type User struct {
	ID          string   `json:"id" doc:"User ID"`
	Username    string   `json:"username" doc:"Unique handle"`
	DisplayName string   `json:"displayName,omitempty" doc:"Name shown next to stories and comments"`
	Email       string   `json:"email,omitempty" doc:"Email address, only shown to its owner"`
	Bio         string   `json:"bio,omitempty" doc:"Short biography"`
	Roles       []string `json:"roles,omitempty" doc:"Granted roles"`
}

// UserOf converts a domain user.
func UserOf(u domain.UserSummary) User {
	return User{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Bio:         u.Bio,
		Roles:       u.Roles,
	}
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" doc:"User email address"`
	Password string `json:"password" validate:"required,max=1024" doc:"User password"`
}

// RegisterRequest is the request body for account creation.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50" doc:"Unique handle"`
	Email       string `json:"email" validate:"required,email,max=254" doc:"Email address"`
	Password    string `json:"password" validate:"required,min=6,max=1024" doc:"Password (6-1024 chars)"`
	DisplayName string `json:"displayName,omitempty" validate:"max=100" doc:"Optional display name"`
	Bio         string `json:"bio,omitempty" validate:"max=500" doc:"Optional biography"`
}

// Profile converts the request to a domain profile.
func (r RegisterRequest) Profile() domain.RegisterProfile {
	return domain.RegisterProfile{
		Username:    r.Username,
		Email:       r.Email,
		Password:    r.Password,
		DisplayName: r.DisplayName,
		Bio:         r.Bio,
	}
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string `json:"token" doc:"Bearer access token"`
	User  User   `json:"user" doc:"Authenticated user"`
}

// AuthResponseOf converts a domain auth result.
func AuthResponseOf(r domain.AuthResult) AuthResponse {
	return AuthResponse{Token: r.Token, User: UserOf(r.User)}
}
