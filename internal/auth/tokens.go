package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/id"
)

const (
	tokenIssuer   = "taleforged"
	tokenAudience = "taleforge"
)

// Claims are the verified contents of an access token.
type Claims struct {
	UserID    domain.ID `json:"user_id"`
	Username  string    `json:"username"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService issues and verifies PASETO v4.local access tokens. Tokens are
// encrypted, so clients treat them as opaque bearer strings.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}
	if duration <= 0 {
		return nil, fmt.Errorf("token duration must be positive, got %s", duration)
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create token key: %w", err)
	}
	return &TokenService{key: k, duration: duration, now: time.Now}, nil
}

// Issue mints an access token for user.
func (s *TokenService) Issue(user domain.UserSummary) (string, error) {
	jti, err := id.Generate(id.PrefixToken)
	if err != nil {
		return "", err
	}

	now := s.now()
	t := paseto.NewToken()
	t.SetIssuer(tokenIssuer)
	t.SetAudience(tokenAudience)
	t.SetSubject(user.ID.String())
	t.SetIssuedAt(now)
	t.SetNotBefore(now)
	t.SetExpiration(now.Add(s.duration))
	t.SetJti(jti)
	if err := t.Set("user_id", user.ID); err != nil {
		return "", fmt.Errorf("set user claim: %w", err)
	}
	if err := t.Set("username", user.Username); err != nil {
		return "", fmt.Errorf("set username claim: %w", err)
	}

	return t.V4Encrypt(s.key, nil), nil
}

// Verify decrypts token and checks audience, issuer and validity window.
func (s *TokenService) Verify(token string) (Claims, error) {
	p := paseto.NewParser()
	p.AddRule(paseto.ForAudience(tokenAudience))
	p.AddRule(paseto.IssuedBy(tokenIssuer))
	p.AddRule(paseto.ValidAt(s.now()))

	t, err := p.ParseV4Local(s.key, token, nil)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}

	var c Claims
	if err := json.Unmarshal(t.ClaimsJSON(), &c); err != nil {
		return Claims{}, fmt.Errorf("parse claims: %w", err)
	}
	if c.UserID == "" {
		return Claims{}, errors.New("invalid token: missing user")
	}
	return c, nil
}

// Duration returns the configured token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
