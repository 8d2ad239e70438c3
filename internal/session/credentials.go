package session

import (
	"context"
	"sync"
	"time"

	"github.com/taleforge/taleforge/internal/domain"
)

// Credential is what survives a restart: the bearer token and the last user
// snapshot seen with it. The snapshot is informational; the token is always
// revalidated before the session trusts it.
type Credential struct {
	Token   string
	User    domain.UserSummary
	SavedAt time.Time
}

// CredentialStore persists at most one credential. Save overwrites.
type CredentialStore interface {
	Load(ctx context.Context) (Credential, bool, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
}

// MemoryCredentials keeps the credential in process memory.
type MemoryCredentials struct {
	mu   sync.Mutex
	cred *Credential
}

// NewMemoryCredentials returns an empty in-memory credential store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{}
}

// Load returns the held credential.
func (m *MemoryCredentials) Load(_ context.Context) (Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return Credential{}, false, nil
	}
	return *m.cred, true, nil
}

// Save replaces the held credential.
func (m *MemoryCredentials) Save(_ context.Context, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cred
	m.cred = &c
	return nil
}

// Clear drops the held credential.
func (m *MemoryCredentials) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}
