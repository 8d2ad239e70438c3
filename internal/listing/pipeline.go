package listing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/validation"
)

// Mode chooses where filtering, sorting and paging happen.
type Mode string

const (
	// ModeClient fetches every published story and applies the query locally.
	ModeClient Mode = "client"
	// ModeServer passes page, sort and tag to the API.
	ModeServer Mode = "server"
)

// maxBulkPages bounds a client-mode bulk fetch.
const maxBulkPages = 1000

// API is the part of the REST client the pipeline uses.
type API interface {
	ListStories(ctx context.Context, q domain.ListingQuery) (domain.Page[domain.Story], error)
	MyStories(ctx context.Context) ([]domain.Story, error)
}

// Pipeline answers listing queries against the API.
type Pipeline struct {
	api       API
	mode      Mode
	topTags   int
	validator *validation.Validator
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMode selects client or server mode.
func WithMode(m Mode) Option {
	return func(p *Pipeline) { p.mode = m }
}

// WithTopTags sets the facet size.
func WithTopTags(n int) Option {
	return func(p *Pipeline) { p.topTags = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger.OrDiscard(l) }
}

// WithValidator shares a validator instead of building one.
func WithValidator(v *validation.Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// NewPipeline creates a pipeline, client mode by default.
func NewPipeline(api API, opts ...Option) *Pipeline {
	p := &Pipeline{
		api:     api,
		mode:    ModeClient,
		topTags: DefaultTopTags,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		p.validator = validation.New()
	}
	return p
}

// Validate fills defaults and checks the query.
func (p *Pipeline) Validate(q domain.ListingQuery) (domain.ListingQuery, error) {
	q = q.WithDefaults()
	if err := p.validator.Validate(q); err != nil {
		return q, err
	}
	return q, nil
}

// Query returns one page of the public listing. Search text always runs in client
// mode because the API has no search parameter.
func (p *Pipeline) Query(ctx context.Context, q domain.ListingQuery) (Result, error) {
	q, err := p.Validate(q)
	if err != nil {
		return Result{}, err
	}

	if p.mode == ModeServer && q.Search == "" {
		return p.serverQuery(ctx, q)
	}

	all, err := p.fetchAll(ctx)
	if err != nil {
		return Result{}, err
	}
	return Apply(all, q, Options{TopTags: p.topTags}), nil
}

func (p *Pipeline) serverQuery(ctx context.Context, q domain.ListingQuery) (Result, error) {
	page, err := p.api.ListStories(ctx, q)
	if err != nil {
		return Result{}, err
	}

	// Drafts never reach a public listing, whatever the server sent.
	visible := Filter(page.Content, domain.ListingQuery{}, false)
	if dropped := len(page.Content) - len(visible); dropped > 0 {
		p.logger.Warn("server listing contained unpublished stories", "count", dropped)
		page.TotalElements = max(page.TotalElements-dropped, len(visible))
		page.TotalPages = TotalPages(page.TotalElements, page.Size)
	}
	page.Content = visible

	return Result{
		Page:        page,
		PopularTags: PopularTags(visible, p.topTags),
	}, nil
}

// fetchAll pages through the public listing at the maximum page size.
func (p *Pipeline) fetchAll(ctx context.Context) ([]domain.Story, error) {
	var all []domain.Story
	q := domain.ListingQuery{PageSize: domain.MaxPageSize, SortKey: domain.SortCreatedAt, Direction: domain.Desc}

	for page := 0; page < maxBulkPages; page++ {
		q.Page = page
		res, err := p.api.ListStories(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Content...)
		if len(res.Content) == 0 || page+1 >= res.TotalPages {
			return dedupe(all), nil
		}
	}
	return nil, fmt.Errorf("listing has more than %d pages", maxBulkPages)
}

// dedupe drops repeats that appear when stories are created between page fetches.
func dedupe(stories []domain.Story) []domain.Story {
	seen := make(map[domain.ID]bool, len(stories))
	out := stories[:0]
	for _, s := range stories {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// Mine returns one page of the current user's stories, drafts included.
func (p *Pipeline) Mine(ctx context.Context, q domain.ListingQuery) (Result, error) {
	q, err := p.Validate(q)
	if err != nil {
		return Result{}, err
	}

	stories, err := p.api.MyStories(ctx)
	if err != nil {
		return Result{}, err
	}
	return Apply(stories, q, Options{IncludeUnpublished: true, TopTags: p.topTags}), nil
}
