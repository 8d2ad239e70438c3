// Package gateway is the single door between the client core and the TaleForge REST
// API. Every call reads the current credential from the session, attaches it as a
// bearer token, and turns the HTTP outcome into one of the error kinds defined in
// internal/errors. Nothing above this package looks at status codes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/id"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/ratelimit"
)

const (
	// HeaderRequestID carries the per-call correlation id.
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// Session is the view of the Session Store the gateway needs. Token is read on every
// call; HandleUnauthorized is told which token the server rejected.
type Session interface {
	Token() string
	HandleUnauthorized(token string)
}

// Request describes one API call. Path is relative to the base URL. Public requests
// never carry a credential (login and register).
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Public bool
}

// Gateway issues authenticated requests and classifies their results.
type Gateway struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	mu      sync.RWMutex
	session Session
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.http = c }
}

// WithTimeout sets a whole-request timeout. Zero keeps the client's own timeout.
// It holds whatever HTTP client ends up configured, whichever option comes first.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit throttles outbound calls to rps per host. Zero disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			g.limiter = ratelimit.New(rps, burst)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger.OrDiscard(l) }
}

// New creates a gateway for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	g := &Gateway{
		base:   base,
		http:   &http.Client{},
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.timeout > 0 {
		// Copy so a client shared with the caller keeps its own settings.
		c := *g.http
		c.Timeout = g.timeout
		g.http = &c
	}
	return g, nil
}

// SetSession binds the session whose credential is attached to requests. The
// session is bound late because the session itself talks through the gateway.
func (g *Gateway) SetSession(s Session) {
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()
}

// Close releases the rate limiter, if any.
func (g *Gateway) Close() {
	if g.limiter != nil {
		g.limiter.Stop()
	}
}

func (g *Gateway) currentSession() Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

// Send performs req and decodes a successful JSON body into out (which may be nil).
// Failures are *errors.Error values: Unauthorized, Forbidden, NotFound, Validation
// or Unavailable. A 401 on a request that carried a credential tells the session
// to drop that credential.
func (g *Gateway) Send(ctx context.Context, req Request, out any) error {
	var token string
	var sess Session
	if !req.Public {
		if sess = g.currentSession(); sess != nil {
			token = sess.Token()
		}
	}

	httpReq, err := g.build(ctx, req, token)
	if err != nil {
		return err
	}
	requestID := httpReq.Header.Get(HeaderRequestID)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.base.Host); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "request not sent")
		}
	}

	start := time.Now()
	resp, err := g.http.Do(httpReq)
	if err != nil {
		g.logger.Debug("api request failed",
			"method", req.Method,
			"path", req.Path,
			"request_id", requestID,
			"error", err,
		)
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "service unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "read response").WithStatus(resp.StatusCode)
	}

	g.logger.Debug("api request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := Classify(resp.StatusCode, body); err != nil {
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			sess.HandleUnauthorized(token)
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "undecodable response").WithStatus(resp.StatusCode)
	}
	return nil
}

func (g *Gateway) build(ctx context.Context, req Request, token string) (*http.Request, error) {
	// Path is already escaped by the caller.
	u := g.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "TaleForge/1.0")
	httpReq.Header.Set(HeaderRequestID, id.Request())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}
