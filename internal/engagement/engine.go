// Package engagement is the per-story state machine behind a story page: the
// publication lifecycle, the viewer's like relationship and the view counter.
//
// One Engine serves one mount of a story page. Likes are optimistic: the local
// count moves first, then is replaced by the server's count on success or restored
// on failure. Views are counted at most once per Engine and never block anything.
package engagement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/validation"
)

const viewTimeout = 10 * time.Second

// ErrDeleted is returned by every operation after the story was deleted.
var ErrDeleted = errors.New("story deleted")

// ErrNotLoaded is returned when an operation needs a story before Load succeeded.
var ErrNotLoaded = errors.New("story not loaded")

// API is the part of the REST client the engine uses.
type API interface {
	Story(ctx context.Context, id domain.ID) (domain.Story, error)
	StoryLikeStatus(ctx context.Context, id domain.ID) (bool, error)
	RecordView(ctx context.Context, id domain.ID) (int64, error)
	LikeStory(ctx context.Context, id domain.ID) (int64, error)
	UnlikeStory(ctx context.Context, id domain.ID) (int64, error)
	Publish(ctx context.Context, id domain.ID) (domain.Story, error)
	Unpublish(ctx context.Context, id domain.ID) (domain.Story, error)
	UpdateStory(ctx context.Context, id domain.ID, draft domain.StoryDraft) (domain.Story, error)
	DeleteStory(ctx context.Context, id domain.ID) error
}

// Viewer reports who is acting. The session store satisfies it.
type Viewer interface {
	User() (domain.UserSummary, bool)
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	Story       *domain.Story
	HasLiked    bool
	Liking      bool
	ViewCounted bool
	Deleted     bool
	// IsAuthor and CanLike say which controls the viewer gets.
	IsAuthor bool
	CanLike  bool
}

// Engine manages one story for one viewer.
type Engine struct {
	api            API
	viewer         Viewer
	validator      *validation.Validator
	logger         *slog.Logger
	countSelfViews bool
	visitID        string

	mu          sync.Mutex
	story       *domain.Story
	hasLiked    bool
	likeViewer  domain.ID // viewer whose like status hasLiked reflects
	liking      bool
	viewCounted bool
	deleted     bool
	closed      bool

	views sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.OrDiscard(l) }
}

// WithSelfViews controls whether an author viewing their own story counts as a
// view. Counted by default.
func WithSelfViews(count bool) Option {
	return func(e *Engine) { e.countSelfViews = count }
}

// WithValidator shares a validator instead of building one.
func WithValidator(v *validation.Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// New creates an engine for one story mount.
func New(api API, viewer Viewer, opts ...Option) *Engine {
	e := &Engine{
		api:            api,
		viewer:         viewer,
		logger:         logger.Discard(),
		countSelfViews: true,
		visitID:        uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.validator == nil {
		e.validator = validation.New()
	}
	e.logger = e.logger.With("visit_id", e.visitID)
	return e
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	viewer, authed := e.viewer.User()

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		// A like status fetched for someone else says nothing about this viewer.
		HasLiked:    authed && e.hasLiked && e.likeViewer == viewer.ID,
		Liking:      e.liking,
		ViewCounted: e.viewCounted,
		Deleted:     e.deleted,
	}
	if e.story != nil {
		s := e.story.Clone()
		snap.Story = &s
		snap.IsAuthor = authed && s.IsAuthor(viewer.ID)
		snap.CanLike = authed && !snap.IsAuthor
	}
	return snap
}

// Close marks the mount as gone. Results of requests still in flight are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Wait blocks until pending view increments have finished.
func (e *Engine) Wait() {
	e.views.Wait()
}

// checkLocked returns the guard error for the lifecycle state.
func (e *Engine) checkLocked() error {
	switch {
	case e.closed:
		return domainerrors.ErrClosed
	case e.deleted:
		return ErrDeleted
	default:
		return nil
	}
}

// Load fetches the story, the viewer's like status and, once per engine, counts
// a view.
func (e *Engine) Load(ctx context.Context, id domain.ID) error {
	e.mu.Lock()
	if err := e.checkLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	story, err := e.api.Story(ctx, id)
	if err != nil {
		return err
	}

	viewer, authed := e.viewer.User()
	isAuthor := authed && story.IsAuthor(viewer.ID)

	e.mu.Lock()
	needStatus := authed && !isAuthor && e.likeViewer != viewer.ID
	e.mu.Unlock()

	var liked bool
	statusKnown := false
	if needStatus {
		if liked, err = e.api.StoryLikeStatus(ctx, id); err != nil {
			// The story still renders; the status is fetched again on the next Load.
			e.logger.Warn("like status unavailable", "story_id", id, "error", err)
		} else {
			statusKnown = true
		}
	}

	e.mu.Lock()
	if err := e.checkLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.story != nil && e.story.ID != story.ID {
		// A different story on the same engine is a new visit.
		e.hasLiked, e.likeViewer, e.viewCounted = false, "", false
	}
	e.story = &story
	if !authed || isAuthor {
		e.hasLiked, e.likeViewer = false, ""
	} else if statusKnown && !e.liking {
		e.hasLiked, e.likeViewer = liked, viewer.ID
	}

	countView := !e.viewCounted && (e.countSelfViews || !isAuthor)
	if countView {
		e.viewCounted = true
		e.views.Add(1)
	}
	e.mu.Unlock()

	if countView {
		go e.recordView(context.WithoutCancel(ctx), story.ID)
	}
	return nil
}

// recordView is fire-and-forget: failures are logged and never retried, and the
// server's count is only applied if it does not move the local count backwards.
func (e *Engine) recordView(ctx context.Context, id domain.ID) {
	defer e.views.Done()

	ctx, cancel := context.WithTimeout(ctx, viewTimeout)
	defer cancel()

	views, err := e.api.RecordView(ctx, id)
	if err != nil {
		e.logger.Warn("view increment failed", "story_id", id, "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.story == nil || e.story.ID != id {
		return
	}
	if views > e.story.Views {
		e.story.Views = views
	}
}

// ToggleLike likes or unlikes the story for the viewer. Anonymous viewers, the
// author and a second toggle while one is in flight are rejected without a
// request. When the known like status belongs to another viewer, for example
// after switching accounts, the status is fetched again before choosing between
// like and unlike.
func (e *Engine) ToggleLike(ctx context.Context) error {
	viewer, authed := e.viewer.User()

	e.mu.Lock()
	if err := e.checkLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.story == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if !authed {
		e.mu.Unlock()
		return domainerrors.Unauthorized("sign in to like stories")
	}
	if e.story.IsAuthor(viewer.ID) {
		e.mu.Unlock()
		return domainerrors.ErrSelfInteraction
	}
	if e.liking {
		e.mu.Unlock()
		return domainerrors.ErrBusy
	}

	id := e.story.ID
	if e.likeViewer != viewer.ID {
		if err := e.refreshLikeLocked(ctx, id, viewer.ID); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	prevLikes, prevLiked := e.story.Likes, e.hasLiked
	unlike := e.hasLiked
	e.liking = true
	if unlike {
		e.story.Likes = domain.Clamp(e.story.Likes - 1)
	} else {
		e.story.Likes++
	}
	e.hasLiked = !unlike
	e.likeViewer = viewer.ID
	e.mu.Unlock()

	var likes int64
	var err error
	if unlike {
		likes, err = e.api.UnlikeStory(ctx, id)
	} else {
		likes, err = e.api.LikeStory(ctx, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.liking = false
	if e.closed || e.story == nil || e.story.ID != id {
		return err
	}
	if err != nil {
		e.story.Likes, e.hasLiked = prevLikes, prevLiked
		return err
	}
	e.story.Likes = domain.Clamp(likes)
	return nil
}

// refreshLikeLocked fetches viewerID's like status for story id. Callers hold mu;
// it is released during the request, and liking blocks other toggles meanwhile.
func (e *Engine) refreshLikeLocked(ctx context.Context, id, viewerID domain.ID) error {
	e.liking = true
	e.mu.Unlock()
	liked, err := e.api.StoryLikeStatus(ctx, id)
	e.mu.Lock()
	e.liking = false

	if err != nil {
		return err
	}
	if err := e.checkLocked(); err != nil {
		return err
	}
	if e.story == nil || e.story.ID != id {
		return ErrNotLoaded
	}
	e.hasLiked, e.likeViewer = liked, viewerID
	return nil
}

// requireAuthorLocked checks the viewer owns the loaded story. Callers hold mu.
func (e *Engine) requireAuthorLocked(action string) error {
	if err := e.checkLocked(); err != nil {
		return err
	}
	if e.story == nil {
		return ErrNotLoaded
	}
	viewer, authed := e.viewer.User()
	if !authed {
		return domainerrors.Unauthorized("sign in to " + action + " stories")
	}
	if !e.story.IsAuthor(viewer.ID) {
		return domainerrors.Forbiddenf("only the author can %s this story", action)
	}
	return nil
}

// Publish moves a draft to published. The server's story replaces local state.
func (e *Engine) Publish(ctx context.Context) error {
	return e.transition(ctx, "publish", e.api.Publish)
}

// Unpublish moves a published story back to draft.
func (e *Engine) Unpublish(ctx context.Context) error {
	return e.transition(ctx, "unpublish", e.api.Unpublish)
}

// transition issues the request even when the story is already in the target
// state; the server decides.
func (e *Engine) transition(ctx context.Context, action string, call func(context.Context, domain.ID) (domain.Story, error)) error {
	e.mu.Lock()
	if err := e.requireAuthorLocked(action); err != nil {
		e.mu.Unlock()
		return err
	}
	id := e.story.ID
	e.mu.Unlock()

	story, err := call(ctx, id)
	if err != nil {
		return err
	}
	e.replace(id, story)
	return nil
}

// Update edits the story's text and tags.
func (e *Engine) Update(ctx context.Context, draft domain.StoryDraft) error {
	draft = draft.Normalized()
	if err := e.validator.Validate(draft); err != nil {
		return err
	}

	e.mu.Lock()
	if err := e.requireAuthorLocked("edit"); err != nil {
		e.mu.Unlock()
		return err
	}
	id := e.story.ID
	e.mu.Unlock()

	story, err := e.api.UpdateStory(ctx, id, draft)
	if err != nil {
		return err
	}
	e.replace(id, story)
	return nil
}

func (e *Engine) replace(id domain.ID, story domain.Story) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.deleted || e.story == nil || e.story.ID != id {
		return
	}
	e.story = &story
}

// Delete removes the story after confirm returns true. Afterwards the engine holds
// no story and every operation returns ErrDeleted; callers navigate away.
func (e *Engine) Delete(ctx context.Context, confirm func() bool) error {
	e.mu.Lock()
	if err := e.requireAuthorLocked("delete"); err != nil {
		e.mu.Unlock()
		return err
	}
	id := e.story.ID
	e.mu.Unlock()

	if confirm == nil || !confirm() {
		return domainerrors.ErrNotConfirmed
	}

	if err := e.api.DeleteStory(ctx, id); err != nil {
		return err
	}

	e.mu.Lock()
	e.story = nil
	e.hasLiked = false
	e.deleted = true
	e.mu.Unlock()

	e.logger.Info("story deleted", "story_id", id)
	return nil
}
