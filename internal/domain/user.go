package domain

import "strings"

// Role names.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// UserSummary is the public snapshot of a user: what a session holds for the viewer
// and what stories and comments embed as their author.
type UserSummary struct {
	ID          ID       `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Name returns the display name, falling back to the username.
func (u UserSummary) Name() string {
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	return u.Username
}

// HasRole reports whether the user carries role (case-insensitive).
func (u UserSummary) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Public strips fields that only the user themself should see.
func (u UserSummary) Public() UserSummary {
	u.Email = ""
	u.Roles = nil
	return u
}

// User is a stored account on the server.
type User struct {
	UserSummary
	PasswordHash string `json:"passwordHash,omitempty"`
	Timestamps
}

// RegisterProfile is the registration payload.
type RegisterProfile struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=1024"`
	DisplayName string `json:"displayName,omitempty" validate:"max=100"`
	Bio         string `json:"bio,omitempty" validate:"max=500"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=1024"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

// NormalizeEmail lower-cases and trims an address for index lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
