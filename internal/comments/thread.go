// Package comments manages the comment thread of one story: loading, posting,
// editing, deleting and liking comments while keeping the local list in step with
// the server.
package comments

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/validation"
)

// ErrNotEditing is returned by SetDraft and SaveEdit when no comment is being edited.
var ErrNotEditing = errors.New("no comment is being edited")

// API is the part of the REST client the thread uses.
type API interface {
	Comments(ctx context.Context, storyID domain.ID) ([]domain.Comment, error)
	CreateComment(ctx context.Context, storyID domain.ID, content string) (domain.Comment, error)
	UpdateComment(ctx context.Context, id domain.ID, content string) (domain.Comment, error)
	DeleteComment(ctx context.Context, id domain.ID) error
	LikeComment(ctx context.Context, id domain.ID) (int64, error)
	UnlikeComment(ctx context.Context, id domain.ID) (int64, error)
}

// Viewer reports who is acting. The session store satisfies it.
type Viewer interface {
	User() (domain.UserSummary, bool)
}

// EditState is the thread's edit mode: Idle, or Editing one comment with a draft.
// At most one comment is edited at a time.
type EditState interface {
	isEditState()
}

// Idle means no comment is being edited.
type Idle struct{}

// Editing holds the draft for the comment being edited.
type Editing struct {
	CommentID domain.ID
	Draft     string
}

func (Idle) isEditState()    {}
func (Editing) isEditState() {}

// Snapshot is a copy of the thread state for rendering.
type Snapshot struct {
	Comments   []domain.Comment
	Loaded     bool
	Submitting bool
	Edit       EditState
	// Liking holds the ids of comments with a like request in flight.
	Liking map[domain.ID]bool
}

// Thread manages the comments of one story.
type Thread struct {
	storyID   domain.ID
	api       API
	viewer    Viewer
	validator *validation.Validator
	logger    *slog.Logger

	mu         sync.Mutex
	comments   []domain.Comment
	loaded     bool
	submitting bool
	saving     bool
	edit       EditState
	liking     map[domain.ID]bool
	closed     bool
}

// Option configures a Thread.
type Option func(*Thread)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Thread) { t.logger = logger.OrDiscard(l) }
}

// WithValidator shares a validator instead of building one.
func WithValidator(v *validation.Validator) Option {
	return func(t *Thread) { t.validator = v }
}

// New creates an empty thread for storyID.
func New(storyID domain.ID, api API, viewer Viewer, opts ...Option) *Thread {
	t := &Thread{
		storyID: storyID,
		api:     api,
		viewer:  viewer,
		logger:  logger.Discard(),
		edit:    Idle{},
		liking:  make(map[domain.ID]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.validator == nil {
		t.validator = validation.New()
	}
	t.logger = t.logger.With("story_id", storyID)
	return t
}

// StoryID returns the story the thread belongs to.
func (t *Thread) StoryID() domain.ID {
	return t.storyID
}

// Snapshot returns the current state.
func (t *Thread) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Comments:   slices.Clone(t.comments),
		Loaded:     t.loaded,
		Submitting: t.submitting,
		Edit:       t.edit,
		Liking:     cloneSet(t.liking),
	}
}

func cloneSet(m map[domain.ID]bool) map[domain.ID]bool {
	out := make(map[domain.ID]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = true
		}
	}
	return out
}

// Close marks the thread's mount as gone; in-flight results are dropped.
func (t *Thread) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Load fetches the whole thread and replaces the local list. Order is the server's.
func (t *Thread) Load(ctx context.Context) error {
	if err := t.open(); err != nil {
		return err
	}

	list, err := t.api.Comments(ctx, t.storyID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domainerrors.ErrClosed
	}
	t.comments = list
	t.loaded = true
	if e, ok := t.edit.(Editing); ok && t.indexLocked(e.CommentID) < 0 {
		t.edit = Idle{}
	}
	return nil
}

func (t *Thread) open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domainerrors.ErrClosed
	}
	return nil
}

func (t *Thread) indexLocked(id domain.ID) int {
	return slices.IndexFunc(t.comments, func(c domain.Comment) bool { return c.ID == id })
}

func (t *Thread) requireViewer(action string) (domain.UserSummary, error) {
	user, ok := t.viewer.User()
	if !ok {
		return domain.UserSummary{}, domainerrors.Unauthorized("sign in to " + action)
	}
	return user, nil
}

// Create posts a comment. Blank content is rejected locally. The server's comment
// is prepended as returned.
func (t *Thread) Create(ctx context.Context, content string) (domain.Comment, error) {
	if _, err := t.requireViewer("comment"); err != nil {
		return domain.Comment{}, err
	}
	draft := domain.CommentDraft{Content: strings.TrimSpace(content)}
	if err := t.validator.Validate(draft); err != nil {
		return domain.Comment{}, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.Comment{}, domainerrors.ErrClosed
	}
	if t.submitting {
		t.mu.Unlock()
		return domain.Comment{}, domainerrors.ErrBusy
	}
	t.submitting = true
	t.mu.Unlock()

	created, err := t.api.CreateComment(ctx, t.storyID, draft.Content)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitting = false
	if err != nil {
		return domain.Comment{}, err
	}
	if !t.closed {
		t.comments = slices.Insert(t.comments, 0, created)
	}
	return created, nil
}

// BeginEdit puts comment id into edit mode with its current content as draft.
// Any other edit in progress is discarded.
func (t *Thread) BeginEdit(id domain.ID) error {
	user, err := t.requireViewer("edit comments")
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domainerrors.ErrClosed
	}
	i := t.indexLocked(id)
	if i < 0 {
		return domainerrors.NotFoundf("comment %s not found", id)
	}
	if !t.comments[i].IsAuthor(user.ID) {
		return domainerrors.Forbidden("only the author can edit this comment")
	}
	t.edit = Editing{CommentID: id, Draft: t.comments[i].Content}
	return nil
}

// SetDraft replaces the draft text of the comment being edited.
func (t *Thread) SetDraft(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.edit.(Editing)
	if !ok {
		return ErrNotEditing
	}
	e.Draft = text
	t.edit = e
	return nil
}

// CancelEdit discards the draft. The stored comment is untouched.
func (t *Thread) CancelEdit() {
	t.mu.Lock()
	t.edit = Idle{}
	t.mu.Unlock()
}

// SaveEdit submits the draft. The local comment is replaced only when the server
// confirms; on failure the draft is kept so the user can retry.
func (t *Thread) SaveEdit(ctx context.Context) (domain.Comment, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.Comment{}, domainerrors.ErrClosed
	}
	e, ok := t.edit.(Editing)
	if !ok {
		t.mu.Unlock()
		return domain.Comment{}, ErrNotEditing
	}
	if t.saving {
		t.mu.Unlock()
		return domain.Comment{}, domainerrors.ErrBusy
	}
	draft := domain.CommentDraft{Content: strings.TrimSpace(e.Draft)}
	if err := t.validator.Validate(draft); err != nil {
		t.mu.Unlock()
		return domain.Comment{}, err
	}
	t.saving = true
	t.mu.Unlock()

	updated, err := t.api.UpdateComment(ctx, e.CommentID, draft.Content)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.saving = false
	if err != nil {
		return domain.Comment{}, err
	}
	if t.closed {
		return updated, nil
	}
	if i := t.indexLocked(e.CommentID); i >= 0 {
		t.comments[i] = updated
	}
	// Only leave edit mode if the user has not moved on to another comment.
	if cur, ok := t.edit.(Editing); ok && cur.CommentID == e.CommentID {
		t.edit = Idle{}
	}
	return updated, nil
}

// Delete removes comment id after confirm returns true. The local list changes
// only after the server confirms.
func (t *Thread) Delete(ctx context.Context, id domain.ID, confirm func() bool) error {
	user, err := t.requireViewer("delete comments")
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domainerrors.ErrClosed
	}
	i := t.indexLocked(id)
	if i < 0 {
		t.mu.Unlock()
		return domainerrors.NotFoundf("comment %s not found", id)
	}
	if !t.comments[i].IsAuthor(user.ID) {
		t.mu.Unlock()
		return domainerrors.Forbidden("only the author can delete this comment")
	}
	t.mu.Unlock()

	if confirm == nil || !confirm() {
		return domainerrors.ErrNotConfirmed
	}

	if err := t.api.DeleteComment(ctx, id); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if i := t.indexLocked(id); i >= 0 {
		t.comments = slices.Delete(t.comments, i, i+1)
	}
	if e, ok := t.edit.(Editing); ok && e.CommentID == id {
		t.edit = Idle{}
	}
	return nil
}

// ToggleLike likes or unlikes comment id with the same optimistic contract as
// story likes: apply locally, then take the server's count or roll back.
func (t *Thread) ToggleLike(ctx context.Context, id domain.ID) error {
	user, err := t.requireViewer("like comments")
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domainerrors.ErrClosed
	}
	i := t.indexLocked(id)
	if i < 0 {
		t.mu.Unlock()
		return domainerrors.NotFoundf("comment %s not found", id)
	}
	c := &t.comments[i]
	if c.IsAuthor(user.ID) {
		t.mu.Unlock()
		return domainerrors.ErrSelfInteraction
	}
	if t.liking[id] {
		t.mu.Unlock()
		return domainerrors.ErrBusy
	}

	prevLikes, prevLiked := c.Likes, c.Liked
	unlike := c.Liked
	if unlike {
		c.Likes = domain.Clamp(c.Likes - 1)
	} else {
		c.Likes++
	}
	c.Liked = !unlike
	t.liking[id] = true
	t.mu.Unlock()

	var likes int64
	if unlike {
		likes, err = t.api.UnlikeComment(ctx, id)
	} else {
		likes, err = t.api.LikeComment(ctx, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.liking, id)
	if t.closed {
		return err
	}
	// The comment may have moved or gone while the request was in flight.
	j := t.indexLocked(id)
	if j < 0 {
		return err
	}
	if err != nil {
		t.comments[j].Likes, t.comments[j].Liked = prevLikes, prevLiked
		return err
	}
	t.comments[j].Likes = domain.Clamp(likes)
	return nil
}
