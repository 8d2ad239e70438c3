// Package app wires the client core: one gateway, one typed client and one session
// store shared by every engine the caller opens.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taleforge/taleforge/internal/client"
	"github.com/taleforge/taleforge/internal/comments"
	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/engagement"
	"github.com/taleforge/taleforge/internal/gateway"
	"github.com/taleforge/taleforge/internal/listing"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/session"
	"github.com/taleforge/taleforge/internal/validation"
)

// App is the client composition root.
type App struct {
	cfg       config.ClientConfig
	logger    *slog.Logger
	validator *validation.Validator

	gateway *gateway.Gateway
	client  *client.Client
	session *session.Store
	creds   closer
}

type closer interface {
	Close() error
}

// Option configures an App.
type Option func(*options)

type options struct {
	creds     session.CredentialStore
	gwOptions []gateway.Option
}

// WithCredentials replaces the sqlite credential file, typically with
// session.NewMemoryCredentials in tests.
func WithCredentials(c session.CredentialStore) Option {
	return func(o *options) { o.creds = c }
}

// WithGatewayOptions adds gateway options. The configured request timeout still
// applies when they replace the HTTP client.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *options) { o.gwOptions = append(o.gwOptions, opts...) }
}

// New builds the client core from configuration. The session is not initialized;
// call Start before issuing authenticated requests.
func New(cfg config.ClientConfig, log *slog.Logger, opts ...Option) (*App, error) {
	log = logger.OrDiscard(log)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	gwOpts := append([]gateway.Option{
		gateway.WithRateLimit(cfg.RequestsPerSecond, 1),
		gateway.WithLogger(log),
	}, o.gwOptions...)
	gwOpts = append(gwOpts, gateway.WithTimeout(cfg.RequestTimeout))

	gw, err := gateway.New(cfg.BaseURL, gwOpts...)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		logger:    log,
		validator: validation.New(),
		gateway:   gw,
		client:    client.New(gw),
	}

	creds := o.creds
	if creds == nil {
		sqlite, err := session.OpenSQLiteCredentials(cfg.CredentialsPath)
		if err != nil {
			gw.Close()
			return nil, fmt.Errorf("open credentials: %w", err)
		}
		creds = sqlite
		a.creds = sqlite
	}

	a.session = session.New(a.client, creds, session.WithLogger(log))
	gw.SetSession(a.session)
	return a, nil
}

// Start restores the persisted session, validating it against the API.
func (a *App) Start(ctx context.Context) error {
	return a.session.Initialize(ctx)
}

// Session returns the shared session store.
func (a *App) Session() *session.Store { return a.session }

// Client returns the typed REST client.
func (a *App) Client() *client.Client { return a.client }

// Engagement opens an engine for one story page.
func (a *App) Engagement() *engagement.Engine {
	return engagement.New(a.client, a.session,
		engagement.WithLogger(a.logger),
		engagement.WithSelfViews(a.cfg.CountSelfViews),
		engagement.WithValidator(a.validator),
	)
}

// Thread opens the comment thread of a story.
func (a *App) Thread(storyID domain.ID) *comments.Thread {
	return comments.New(storyID, a.client, a.session,
		comments.WithLogger(a.logger),
		comments.WithValidator(a.validator),
	)
}

// Listing returns a pipeline configured from the client settings.
func (a *App) Listing() *listing.Pipeline {
	mode := listing.ModeClient
	if a.cfg.ListingMode == config.ListingModeServer {
		mode = listing.ModeServer
	}
	return listing.NewPipeline(a.client,
		listing.WithMode(mode),
		listing.WithTopTags(a.cfg.TopTags),
		listing.WithLogger(a.logger),
		listing.WithValidator(a.validator),
	)
}

// Query fills the configured page size when the caller left it unset.
func (a *App) Query(q domain.ListingQuery) domain.ListingQuery {
	if q.PageSize == 0 {
		q.PageSize = a.cfg.PageSize
	}
	return q
}

// Close stops the gateway limiter and closes the credential file.
func (a *App) Close() error {
	a.gateway.Close()
	if a.creds != nil {
		return a.creds.Close()
	}
	return nil
}
