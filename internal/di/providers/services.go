package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/taleforge/taleforge/internal/auth"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/service"
	"github.com/taleforge/taleforge/internal/validation"
)

// ProvideAuthService provides the registration and login service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokens, v, log.Logger), nil
}

// ProvideStoryService provides the story service and fills the search index from
// the store.
func ProvideStoryService(i do.Injector) (*service.StoryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	index, err := do.Invoke[*SearchIndexHandle](i)
	if err != nil {
		return nil, err
	}
	events := do.MustInvoke[*EventsHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	stories := service.NewStoryService(storeHandle.Store, v, log.Logger,
		service.WithSearchIndex(index.Index),
		service.WithEvents(events.Manager),
	)
	if err := stories.Reindex(context.Background()); err != nil {
		return nil, fmt.Errorf("build search index: %w", err)
	}
	return stories, nil
}

// ProvideCommentService provides the comment service.
func ProvideCommentService(i do.Injector) (*service.CommentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	stories := do.MustInvoke[*service.StoryService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCommentService(storeHandle.Store, stories, v, log.Logger), nil
}
