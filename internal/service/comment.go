package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/sse"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

// CommentService manages comments. Comments inherit their story's visibility.
type CommentService struct {
	store     *store.Store
	stories   *StoryService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(s *store.Store, stories *StoryService, v *validation.Validator, log *slog.Logger) *CommentService {
	return &CommentService{store: s, stories: stories, validator: v, logger: logger.OrDiscard(log)}
}

// List returns a story's comments newest first, with liked set for viewer.
func (s *CommentService) List(ctx context.Context, viewer *domain.UserSummary, storyID domain.ID) ([]domain.Comment, error) {
	if _, err := s.stories.readable(ctx, viewer, storyID); err != nil {
		return nil, err
	}
	records, err := s.store.CommentsByStory(ctx, storyID)
	if err != nil {
		return nil, mapStoreError(err, "list comments")
	}
	slices.SortStableFunc(records, func(a, b store.Comment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
			return c
		}
		return b.ID.Compare(a.ID)
	})
	return s.join(ctx, viewer, records)
}

func (s *CommentService) validContent(content string) (string, error) {
	d := domain.CommentDraft{Content: strings.TrimSpace(content)}
	if err := s.validator.Validate(d); err != nil {
		return "", err
	}
	return d.Content, nil
}

// Create adds a comment by viewer to a readable story.
func (s *CommentService) Create(ctx context.Context, viewer *domain.UserSummary, storyID domain.ID, content string) (domain.Comment, error) {
	if err := requireViewer(viewer); err != nil {
		return domain.Comment{}, err
	}
	content, err := s.validContent(content)
	if err != nil {
		return domain.Comment{}, err
	}
	story, err := s.stories.readable(ctx, viewer, storyID)
	if err != nil {
		return domain.Comment{}, err
	}

	rec := store.Comment{StoryID: storyID, AuthorID: viewer.ID, Content: content}
	if err := s.store.CreateComment(ctx, &rec); err != nil {
		return domain.Comment{}, mapStoreError(err, "create comment")
	}
	s.logger.Info("comment created", "comment_id", rec.ID, "story_id", storyID)
	comment := rec.ToDomain(viewer.Public(), false)
	if story.Published {
		s.stories.events.Emit(sse.NewCommentEvent(sse.EventCommentCreated, &comment))
	}
	return comment, nil
}

// owned loads a comment written by viewer.
func (s *CommentService) owned(ctx context.Context, viewer *domain.UserSummary, id domain.ID, action string) (store.Comment, error) {
	if err := requireViewer(viewer); err != nil {
		return store.Comment{}, err
	}
	rec, err := s.store.Comment(ctx, id)
	if err != nil {
		return store.Comment{}, mapStoreError(err, "get comment")
	}
	if rec.AuthorID != viewer.ID {
		return store.Comment{}, domainerrors.Forbiddenf("only the author can %s this comment", action)
	}
	return rec, nil
}

// Update replaces the comment text and marks it edited.
func (s *CommentService) Update(ctx context.Context, viewer *domain.UserSummary, id domain.ID, content string) (domain.Comment, error) {
	if _, err := s.owned(ctx, viewer, id, "edit"); err != nil {
		return domain.Comment{}, err
	}
	content, err := s.validContent(content)
	if err != nil {
		return domain.Comment{}, err
	}
	rec, err := s.store.UpdateComment(ctx, id, func(c *store.Comment) error {
		c.Content = content
		c.Edited = true
		return nil
	})
	if err != nil {
		return domain.Comment{}, mapStoreError(err, "update comment")
	}
	liked, err := s.store.LikedComments(ctx, viewer.ID, []domain.ID{id})
	if err != nil {
		return domain.Comment{}, mapStoreError(err, "get comment like")
	}
	comment := rec.ToDomain(viewer.Public(), liked[id])
	s.emit(ctx, sse.EventCommentUpdated, &comment)
	return comment, nil
}

// Delete removes a comment written by viewer.
func (s *CommentService) Delete(ctx context.Context, viewer *domain.UserSummary, id domain.ID) error {
	rec, err := s.owned(ctx, viewer, id, "delete")
	if err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return mapStoreError(err, "delete comment")
	}
	comment := rec.ToDomain(viewer.Public(), false)
	s.emit(ctx, sse.EventCommentDeleted, &comment)
	return nil
}

// SetLike likes or unlikes a comment. Authors cannot like their own comments.
func (s *CommentService) SetLike(ctx context.Context, viewer *domain.UserSummary, id domain.ID, liked bool) (int64, error) {
	if err := requireViewer(viewer); err != nil {
		return 0, err
	}
	rec, err := s.store.Comment(ctx, id)
	if err != nil {
		return 0, mapStoreError(err, "get comment")
	}
	if rec.AuthorID == viewer.ID {
		return 0, domainerrors.Forbidden("cannot like your own comment")
	}
	story, err := s.stories.readable(ctx, viewer, rec.StoryID)
	if err != nil {
		return 0, err
	}
	likes, err := s.store.SetCommentLike(ctx, id, viewer.ID, liked)
	if err != nil {
		return 0, mapStoreError(err, "set comment like")
	}
	if story.Published {
		s.stories.events.Emit(sse.NewCommentEvent(sse.EventCommentLiked, &domain.Comment{
			ID:      id,
			StoryID: rec.StoryID,
			Likes:   likes,
		}))
	}
	return likes, nil
}

// emit publishes a comment event when the comment's story is published.
func (s *CommentService) emit(ctx context.Context, t sse.EventType, c *domain.Comment) {
	story, err := s.store.Story(ctx, c.StoryID)
	if err != nil {
		s.logger.Debug("skipping comment event", "comment_id", c.ID, "error", err)
		return
	}
	if story.Published {
		s.stories.events.Emit(sse.NewCommentEvent(t, c))
	}
}

func (s *CommentService) join(ctx context.Context, viewer *domain.UserSummary, records []store.Comment) ([]domain.Comment, error) {
	ids := make([]domain.ID, len(records))
	authorIDs := make([]domain.ID, len(records))
	for i, r := range records {
		ids[i] = r.ID
		authorIDs[i] = r.AuthorID
	}
	byID, err := authors(ctx, s.store, authorIDs)
	if err != nil {
		return nil, err
	}

	liked := map[domain.ID]bool{}
	if viewer != nil {
		if liked, err = s.store.LikedComments(ctx, viewer.ID, ids); err != nil {
			return nil, mapStoreError(err, "get comment likes")
		}
	}

	out := make([]domain.Comment, len(records))
	for i, r := range records {
		out[i] = r.ToDomain(author(byID, r.AuthorID), liked[r.ID])
	}
	return out, nil
}
