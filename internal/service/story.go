package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/listing"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/search"
	"github.com/taleforge/taleforge/internal/sse"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

// StoryService enforces story visibility and ownership. Drafts are visible only to
// their author; to everyone else they do not exist.
type StoryService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
	index     *search.Index
	events    EventEmitter
}

// StoryOption configures a StoryService.
type StoryOption func(*StoryService)

// WithSearchIndex keeps idx in step with published stories and answers Search
// from it.
func WithSearchIndex(idx *search.Index) StoryOption {
	return func(s *StoryService) { s.index = idx }
}

// WithEvents publishes engagement on published stories to e.
func WithEvents(e EventEmitter) StoryOption {
	return func(s *StoryService) { s.events = e }
}

// NewStoryService creates a new story service.
func NewStoryService(s *store.Store, v *validation.Validator, log *slog.Logger, opts ...StoryOption) *StoryService {
	svc := &StoryService{store: s, validator: v, logger: logger.OrDiscard(log), events: discardEvents{}}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// List returns one page of published stories.
func (s *StoryService) List(ctx context.Context, q domain.ListingQuery) (domain.Page[domain.Story], error) {
	q = q.WithDefaults()
	if err := s.validator.Validate(q); err != nil {
		return domain.Page[domain.Story]{}, err
	}

	records, err := s.store.Stories(ctx)
	if err != nil {
		return domain.Page[domain.Story]{}, mapStoreError(err, "list stories")
	}
	stories, err := s.join(ctx, records)
	if err != nil {
		return domain.Page[domain.Story]{}, err
	}
	return listing.Apply(stories, q, listing.Options{}).Page, nil
}

// Mine returns every story written by viewer, newest first.
func (s *StoryService) Mine(ctx context.Context, viewer *domain.UserSummary) ([]domain.Story, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	records, err := s.store.StoriesByAuthor(ctx, viewer.ID)
	if err != nil {
		return nil, mapStoreError(err, "list own stories")
	}
	stories, err := s.join(ctx, records)
	if err != nil {
		return nil, err
	}
	listing.Sort(stories, domain.SortCreatedAt, domain.Desc)
	return stories, nil
}

// Get returns a story the viewer may read.
func (s *StoryService) Get(ctx context.Context, viewer *domain.UserSummary, id domain.ID) (domain.Story, error) {
	rec, err := s.readable(ctx, viewer, id)
	if err != nil {
		return domain.Story{}, err
	}
	return s.joinOne(ctx, rec)
}

// readable loads a story, hiding drafts from everyone but their author.
func (s *StoryService) readable(ctx context.Context, viewer *domain.UserSummary, id domain.ID) (store.Story, error) {
	rec, err := s.store.Story(ctx, id)
	if err != nil {
		return store.Story{}, mapStoreError(err, "get story")
	}
	if !rec.Published && rec.AuthorID != viewerID(viewer) {
		return store.Story{}, domainerrors.NotFound("story not found")
	}
	return rec, nil
}

// owned loads a story the viewer wrote.
func (s *StoryService) owned(ctx context.Context, viewer *domain.UserSummary, id domain.ID, action string) (store.Story, error) {
	if err := requireViewer(viewer); err != nil {
		return store.Story{}, err
	}
	rec, err := s.readable(ctx, viewer, id)
	if err != nil {
		return store.Story{}, err
	}
	if rec.AuthorID != viewer.ID {
		return store.Story{}, domainerrors.Forbiddenf("only the author can %s this story", action)
	}
	return rec, nil
}

func (s *StoryService) validDraft(d domain.StoryDraft) (domain.StoryDraft, error) {
	d = d.Normalized()
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if err := s.validator.Validate(d); err != nil {
		return d, err
	}
	return d, nil
}

// Create stores a new draft owned by viewer. New stories start unpublished.
func (s *StoryService) Create(ctx context.Context, viewer *domain.UserSummary, d domain.StoryDraft) (domain.Story, error) {
	if err := requireViewer(viewer); err != nil {
		return domain.Story{}, err
	}
	d, err := s.validDraft(d)
	if err != nil {
		return domain.Story{}, err
	}

	rec := store.Story{
		Title:       d.Title,
		Description: d.Description,
		Content:     d.Content,
		Tags:        d.Tags,
		AuthorID:    viewer.ID,
	}
	if err := s.store.CreateStory(ctx, &rec); err != nil {
		return domain.Story{}, mapStoreError(err, "create story")
	}
	s.logger.Info("story created", "story_id", rec.ID, "author_id", viewer.ID)
	return rec.ToDomain(viewer.Public()), nil
}

// Update replaces the story's editable fields.
func (s *StoryService) Update(ctx context.Context, viewer *domain.UserSummary, id domain.ID, d domain.StoryDraft) (domain.Story, error) {
	if _, err := s.owned(ctx, viewer, id, "edit"); err != nil {
		return domain.Story{}, err
	}
	d, err := s.validDraft(d)
	if err != nil {
		return domain.Story{}, err
	}
	rec, err := s.store.UpdateStory(ctx, id, func(st *store.Story) error {
		st.Title, st.Description, st.Content, st.Tags = d.Title, d.Description, d.Content, d.Tags
		return nil
	})
	if err != nil {
		return domain.Story{}, mapStoreError(err, "update story")
	}
	story := rec.ToDomain(viewer.Public())
	s.reindex(&story)
	if story.Published {
		s.events.Emit(sse.NewStoryEvent(sse.EventStoryUpdated, &story))
	}
	return story, nil
}

// Delete removes the story with its comments and likes.
func (s *StoryService) Delete(ctx context.Context, viewer *domain.UserSummary, id domain.ID) error {
	prev, err := s.owned(ctx, viewer, id, "delete")
	if err != nil {
		return err
	}
	if err := s.store.DeleteStory(ctx, id); err != nil {
		return mapStoreError(err, "delete story")
	}
	s.unindex(id)
	if prev.Published {
		s.events.Emit(sse.NewStoryDeletedEvent(id))
	}
	s.logger.Info("story deleted", "story_id", id, "author_id", viewer.ID)
	return nil
}

// SetPublished publishes or unpublishes a story. Repeating a transition is allowed
// and returns the unchanged story.
func (s *StoryService) SetPublished(ctx context.Context, viewer *domain.UserSummary, id domain.ID, published bool) (domain.Story, error) {
	action := "unpublish"
	if published {
		action = "publish"
	}
	prev, err := s.owned(ctx, viewer, id, action)
	if err != nil {
		return domain.Story{}, err
	}
	rec, err := s.store.UpdateStory(ctx, id, func(st *store.Story) error {
		st.Published = published
		return nil
	})
	if err != nil {
		return domain.Story{}, mapStoreError(err, action+" story")
	}
	s.logger.Info("story "+action+"ed", "story_id", id)
	story := rec.ToDomain(viewer.Public())
	s.reindex(&story)
	if prev.Published != published {
		event := sse.EventStoryUnpublished
		if published {
			event = sse.EventStoryPublished
		}
		s.events.Emit(sse.NewStoryEvent(event, &story))
	}
	return story, nil
}

// RecordView counts one view by any reader, signed in or not.
func (s *StoryService) RecordView(ctx context.Context, viewer *domain.UserSummary, id domain.ID) (int64, error) {
	rec, err := s.readable(ctx, viewer, id)
	if err != nil {
		return 0, err
	}
	views, err := s.store.AddView(ctx, id)
	if err != nil {
		return 0, mapStoreError(err, "record view")
	}
	if rec.Published {
		s.events.Emit(sse.NewCounterEvent(sse.EventStoryViewed, id, views))
	}
	return views, nil
}

// SetLike likes or unlikes a story for viewer and returns the like count.
func (s *StoryService) SetLike(ctx context.Context, viewer *domain.UserSummary, id domain.ID, liked bool) (int64, error) {
	if err := requireViewer(viewer); err != nil {
		return 0, err
	}
	rec, err := s.readable(ctx, viewer, id)
	if err != nil {
		return 0, err
	}
	likes, err := s.store.SetStoryLike(ctx, id, viewer.ID, liked)
	if err != nil {
		return 0, mapStoreError(err, "set story like")
	}
	if rec.Published {
		s.events.Emit(sse.NewCounterEvent(sse.EventStoryLiked, id, likes))
	}
	return likes, nil
}

// RatingInput is one reader's rating of a story.
type RatingInput struct {
	Value float64 `json:"rating" validate:"gte=0,lte=5"`
}

// Rate records viewer's rating of a published story, replacing an earlier one.
// Authors cannot rate their own stories.
func (s *StoryService) Rate(ctx context.Context, viewer *domain.UserSummary, id domain.ID, value float64) (domain.RatingSummary, error) {
	if err := requireViewer(viewer); err != nil {
		return domain.RatingSummary{}, err
	}
	if err := s.validator.Validate(RatingInput{Value: value}); err != nil {
		return domain.RatingSummary{}, err
	}
	rec, err := s.readable(ctx, viewer, id)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if rec.AuthorID == viewer.ID {
		return domain.RatingSummary{}, domainerrors.Forbidden("cannot rate your own story")
	}
	sum, err := s.store.RateStory(ctx, id, viewer.ID, value)
	if err != nil {
		return domain.RatingSummary{}, mapStoreError(err, "rate story")
	}
	if rec.Published {
		s.events.Emit(sse.NewRatingEvent(id, sum))
	}
	return sum, nil
}

// TopRated returns up to limit published stories with at least one rating,
// highest mean rating first; more ratings, then lower id, break ties.
func (s *StoryService) TopRated(ctx context.Context, limit int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = domain.TopRatedLimit
	}
	limit = min(limit, domain.MaxPageSize)

	records, err := s.store.Stories(ctx)
	if err != nil {
		return nil, mapStoreError(err, "list stories")
	}
	rated := slices.DeleteFunc(records, func(r store.Story) bool {
		return !r.Published || r.RatingCount == 0
	})
	slices.SortFunc(rated, func(a, b store.Story) int {
		if c := cmp.Compare(b.Rating(), a.Rating()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.RatingCount, a.RatingCount); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return s.join(ctx, rated[:min(limit, len(rated))])
}

// ByAuthor returns the published stories of one author, newest first. Drafts
// stay private even when the author asks; Mine lists those.
func (s *StoryService) ByAuthor(ctx context.Context, authorID domain.ID) ([]domain.Story, error) {
	if _, err := s.store.User(ctx, authorID); err != nil {
		return nil, mapStoreError(err, "get author")
	}
	records, err := s.store.StoriesByAuthor(ctx, authorID)
	if err != nil {
		return nil, mapStoreError(err, "list author stories")
	}
	records = slices.DeleteFunc(records, func(r store.Story) bool { return !r.Published })
	stories, err := s.join(ctx, records)
	if err != nil {
		return nil, err
	}
	listing.Sort(stories, domain.SortCreatedAt, domain.Desc)
	return stories, nil
}

// Liked reports whether viewer likes the story.
func (s *StoryService) Liked(ctx context.Context, viewer *domain.UserSummary, id domain.ID) (bool, error) {
	if err := requireViewer(viewer); err != nil {
		return false, err
	}
	if _, err := s.readable(ctx, viewer, id); err != nil {
		return false, err
	}
	liked, err := s.store.StoryLiked(ctx, id, viewer.ID)
	return liked, mapStoreError(err, "get like status")
}

func (s *StoryService) join(ctx context.Context, records []store.Story) ([]domain.Story, error) {
	ids := make([]domain.ID, len(records))
	for i, r := range records {
		ids[i] = r.AuthorID
	}
	byID, err := authors(ctx, s.store, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Story, len(records))
	for i, r := range records {
		out[i] = r.ToDomain(author(byID, r.AuthorID))
	}
	return out, nil
}

func (s *StoryService) joinOne(ctx context.Context, rec store.Story) (domain.Story, error) {
	out, err := s.join(ctx, []store.Story{rec})
	if err != nil {
		return domain.Story{}, err
	}
	return out[0], nil
}
