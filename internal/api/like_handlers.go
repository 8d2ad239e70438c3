package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/taleforge/taleforge/internal/api/dto"
	"github.com/taleforge/taleforge/internal/domain"
)

func (s *Server) registerLikeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "likeStory",
		Method:      http.MethodPost,
		Path:        "/stories/{id}/like",
		Summary:     "Like story",
		Description: "Likes a story for the current user. Liking twice counts once.",
		Tags:        []string{"Likes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLikeStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "unlikeStory",
		Method:      http.MethodDelete,
		Path:        "/stories/{id}/like",
		Summary:     "Unlike story",
		Description: "Removes the current user's like",
		Tags:        []string{"Likes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUnlikeStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "storyLikeStatus",
		Method:      http.MethodGet,
		Path:        "/likes/stories/{id}/status",
		Summary:     "Story like status",
		Description: "Returns whether the current user likes the story",
		Tags:        []string{"Likes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStoryLikeStatus)
}

// LikesOutput wraps a like counter for huma.
type LikesOutput struct {
	Body dto.Likes
}

// LikeStatusOutput is a bare boolean body.
type LikeStatusOutput struct {
	Body bool
}

func (s *Server) handleLikeStory(ctx context.Context, input *StoryIDInput) (*LikesOutput, error) {
	return s.setStoryLike(ctx, input.ID, true)
}

func (s *Server) handleUnlikeStory(ctx context.Context, input *StoryIDInput) (*LikesOutput, error) {
	return s.setStoryLike(ctx, input.ID, false)
}

func (s *Server) setStoryLike(ctx context.Context, id string, liked bool) (*LikesOutput, error) {
	likes, err := s.services.Story.SetLike(ctx, viewerFrom(ctx), domain.ID(id), liked)
	if err != nil {
		return nil, err
	}
	return &LikesOutput{Body: dto.Likes{Likes: likes}}, nil
}

func (s *Server) handleStoryLikeStatus(ctx context.Context, input *StoryIDInput) (*LikeStatusOutput, error) {
	liked, err := s.services.Story.Liked(ctx, viewerFrom(ctx), domain.ID(input.ID))
	if err != nil {
		return nil, err
	}
	return &LikeStatusOutput{Body: liked}, nil
}
