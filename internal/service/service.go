// Package service holds the reference server's business rules: accounts, story
// visibility and ownership, the publish lifecycle, likes, views and comments.
//
// Services return errors from internal/errors; the API layer maps their codes to
// HTTP statuses.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/sse"
	"github.com/taleforge/taleforge/internal/store"
)

// mapStoreError turns store sentinels into API errors and wraps everything else.
func mapStoreError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStoryNotFound):
		return domainerrors.NotFound("story not found")
	case errors.Is(err, store.ErrCommentNotFound):
		return domainerrors.NotFound("comment not found")
	case errors.Is(err, store.ErrUserNotFound):
		return domainerrors.NotFound("user not found")
	case errors.Is(err, store.ErrEmailTaken):
		return domainerrors.Conflict("email already registered").
			WithDetails(map[string]string{"email": "is already registered"})
	case errors.Is(err, store.ErrUsernameTaken):
		return domainerrors.Conflict("username already taken").
			WithDetails(map[string]string{"username": "is already taken"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		var de *domainerrors.Error
		if errors.As(err, &de) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
}

// authors loads the public profiles of ids, one lookup per distinct id.
func authors(ctx context.Context, s *store.Store, ids []domain.ID) (map[domain.ID]domain.UserSummary, error) {
	slices.Sort(ids)
	users, err := s.Users(ctx, slices.Compact(ids))
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	out := make(map[domain.ID]domain.UserSummary, len(users))
	for id, u := range users {
		out[id] = u.Public()
	}
	return out, nil
}

func author(m map[domain.ID]domain.UserSummary, id domain.ID) domain.UserSummary {
	if u, ok := m[id]; ok {
		return u
	}
	return domain.UserSummary{ID: id}
}

func viewerID(viewer *domain.UserSummary) domain.ID {
	if viewer == nil {
		return ""
	}
	return viewer.ID
}

func requireViewer(viewer *domain.UserSummary) error {
	if viewer == nil {
		return domainerrors.Unauthorized("authentication required")
	}
	return nil
}

// EventEmitter receives engagement events for live subscribers.
type EventEmitter interface {
	Emit(sse.Event)
}

type discardEvents struct{}

func (discardEvents) Emit(sse.Event) {}
