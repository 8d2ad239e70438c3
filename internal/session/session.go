// Package session holds the one credential the client acts with.
//
// The Store is the only writer of that credential. Its writers are enumerated:
// Initialize, Login, Register, Logout and HandleUnauthorized (called by the gateway
// when the server rejects the credential it attached). Everything else reads.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/validation"
)

// API is the part of the REST client the session uses.
type API interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error)
	Register(ctx context.Context, profile domain.RegisterProfile) (domain.AuthResult, error)
	Me(ctx context.Context) (domain.UserSummary, error)
}

// State is the session's identity state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State   State
	User    domain.UserSummary
	Loading bool
}

// Authenticated reports whether the snapshot has a validated user.
func (s Snapshot) Authenticated() bool {
	return s.State == Authenticated
}

// Store owns the session. The zero value is not usable; call New.
type Store struct {
	api       API
	creds     CredentialStore
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time

	// writeMu serializes writers so memory and persistence change in the same order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	token   string
	user    *domain.UserSummary
	loading bool
	gen     uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	readyOnce sync.Once
	ready     chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logger.OrDiscard(l) }
}

// WithClock replaces time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an anonymous session.
func New(api API, creds CredentialStore, opts ...Option) *Store {
	s := &Store{
		api:       api,
		creds:     creds,
		validator: validation.New(),
		logger:    logger.Discard(),
		now:       time.Now,
		subs:      make(map[int]func(Snapshot)),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the credential to attach to requests, or "". During Initialize it
// is the credential being validated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: Anonymous, Loading: s.loading}
	if s.user != nil && s.token != "" {
		snap.State = Authenticated
		snap.User = *s.user
		snap.User.Roles = slices.Clone(s.user.Roles)
	}
	return snap
}

// User returns the authenticated user.
func (s *Store) User() (domain.UserSummary, bool) {
	snap := s.Snapshot()
	return snap.User, snap.Authenticated()
}

// Loading reports whether Initialize is validating a stored credential. Callers
// must not treat Anonymous as final while it is true.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Ready is closed once the first Initialize has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe registers fn to be called with the new snapshot after every state
// change. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// set replaces the in-memory credential. Every writer goes through here so the
// generation always moves forward. Callers hold writeMu.
func (s *Store) set(token string, user *domain.UserSummary, loading bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.token = token
	s.user = user
	s.loading = loading
	return s.gen
}

// Initialize restores a persisted credential and validates it against the
// identity endpoint. Any validation failure discards the credential; the session
// stays Anonymous and the next Initialize finds nothing to validate. Only a
// credential storage failure is returned.
func (s *Store) Initialize(ctx context.Context) error {
	defer s.readyOnce.Do(func() { close(s.ready) })

	cred, ok, err := s.creds.Load(ctx)
	if err != nil {
		return err
	}
	if !ok || cred.Token == "" {
		return nil
	}

	if tokenExpired(cred.Token, s.now()) {
		s.logger.Info("stored credential expired, discarding")
		return s.creds.Clear(ctx)
	}

	s.writeMu.Lock()
	if s.Token() != "" {
		// A login won the race; its credential is newer.
		s.writeMu.Unlock()
		return nil
	}
	gen := s.set(cred.Token, nil, true)
	s.writeMu.Unlock()
	s.notify()

	user, err := s.api.Me(ctx)

	s.writeMu.Lock()
	if s.generation() != gen {
		s.writeMu.Unlock()
		return nil
	}
	if err != nil {
		s.set("", nil, false)
		clearErr := s.creds.Clear(ctx)
		s.writeMu.Unlock()
		s.logger.Info("stored credential rejected, discarding", "error", err)
		s.notify()
		return clearErr
	}
	s.set(cred.Token, &user, false)
	saveErr := s.creds.Save(ctx, Credential{Token: cred.Token, User: user, SavedAt: cred.SavedAt})
	s.writeMu.Unlock()
	s.notify()
	if saveErr != nil {
		s.logger.Warn("failed to refresh stored user", "error", saveErr)
	}
	return nil
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Login exchanges credentials for a token. On failure the current state is kept
// and an *AuthError is returned.
func (s *Store) Login(ctx context.Context, email, password string) (domain.UserSummary, error) {
	res, err := s.api.Login(ctx, domain.Credentials{
		Email:    domain.NormalizeEmail(email),
		Password: password,
	})
	if err != nil {
		return domain.UserSummary{}, classifyAuthFailure(err, false)
	}
	return s.establish(ctx, res)
}

// Register creates an account and signs in with it. Field problems caught locally
// are reported the same way as the server's.
func (s *Store) Register(ctx context.Context, profile domain.RegisterProfile) (domain.UserSummary, error) {
	profile.Email = domain.NormalizeEmail(profile.Email)
	if err := s.validator.Validate(profile); err != nil {
		return domain.UserSummary{}, classifyAuthFailure(err, true)
	}

	res, err := s.api.Register(ctx, profile)
	if err != nil {
		return domain.UserSummary{}, classifyAuthFailure(err, true)
	}
	return s.establish(ctx, res)
}

func (s *Store) establish(ctx context.Context, res domain.AuthResult) (domain.UserSummary, error) {
	if res.Token == "" {
		return domain.UserSummary{}, &AuthError{Reason: ReasonServer, Message: "server returned no token"}
	}

	user := res.User
	s.writeMu.Lock()
	s.set(res.Token, &user, false)
	err := s.creds.Save(ctx, Credential{Token: res.Token, User: user, SavedAt: s.now()})
	s.writeMu.Unlock()
	s.notify()

	if err != nil {
		// The session works for this process even if it cannot be persisted.
		s.logger.Warn("failed to persist credential", "error", err)
	}
	return user, nil
}

// Logout discards the credential. It never touches the network and always succeeds
// locally.
func (s *Store) Logout() {
	s.writeMu.Lock()
	s.set("", nil, false)
	err := s.creds.Clear(context.Background())
	s.writeMu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Warn("failed to clear stored credential", "error", err)
	}
}

// HandleUnauthorized drops the credential the server rejected. A rejection of a
// token that is no longer current is ignored.
func (s *Store) HandleUnauthorized(token string) {
	s.writeMu.Lock()
	if token == "" || s.Token() != token {
		s.writeMu.Unlock()
		return
	}
	s.set("", nil, false)
	err := s.creds.Clear(context.Background())
	s.writeMu.Unlock()

	s.logger.Info("credential rejected by server, session cleared")
	s.notify()
	if err != nil {
		s.logger.Warn("failed to clear stored credential", "error", err)
	}
}

// RefreshUser re-fetches the user snapshot for the current credential.
func (s *Store) RefreshUser(ctx context.Context) (domain.UserSummary, error) {
	s.mu.RLock()
	token, gen := s.token, s.gen
	s.mu.RUnlock()
	if token == "" {
		return domain.UserSummary{}, errNotSignedIn
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		return domain.UserSummary{}, err
	}

	s.writeMu.Lock()
	if s.generation() == gen {
		s.set(token, &user, false)
	}
	s.writeMu.Unlock()
	s.notify()
	return user, nil
}

// tokenExpired peeks at a JWT's exp claim without verifying it. Opaque tokens
// (PASETO, random strings) are never considered expired here.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}
