package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/taleforge/taleforge/internal/api/dto"
	"github.com/taleforge/taleforge/internal/domain"
)

func (s *Server) registerCommentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listComments",
		Method:      http.MethodGet,
		Path:        "/comments/story/{id}",
		Summary:     "List comments",
		Description: "Returns a story's comments, newest first",
		Tags:        []string{"Comments"},
	}, s.handleListComments)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createComment",
		Method:        http.MethodPost,
		Path:          "/comments/story/{id}",
		Summary:       "Create comment",
		Description:   "Adds a comment by the current user to a story",
		Tags:          []string{"Comments"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateComment)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateComment",
		Method:      http.MethodPut,
		Path:        "/comments/{id}",
		Summary:     "Update comment",
		Description: "Replaces the text of a comment the user wrote",
		Tags:        []string{"Comments"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateComment)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteComment",
		Method:        http.MethodDelete,
		Path:          "/comments/{id}",
		Summary:       "Delete comment",
		Description:   "Deletes a comment the user wrote",
		Tags:          []string{"Comments"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteComment)

	huma.Register(s.api, huma.Operation{
		OperationID: "likeComment",
		Method:      http.MethodPost,
		Path:        "/comments/{id}/like",
		Summary:     "Like comment",
		Description: "Likes another user's comment",
		Tags:        []string{"Comments"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLikeComment)

	huma.Register(s.api, huma.Operation{
		OperationID: "unlikeComment",
		Method:      http.MethodDelete,
		Path:        "/comments/{id}/like",
		Summary:     "Unlike comment",
		Description: "Removes the current user's like from a comment",
		Tags:        []string{"Comments"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUnlikeComment)
}

// === DTOs ===

// CommentIDInput identifies a comment by path.
type CommentIDInput struct {
	ID string `path:"id" doc:"Comment ID"`
}

// CreateCommentInput wraps a comment create request for huma.
type CreateCommentInput struct {
	ID   string `path:"id" doc:"Story ID"`
	Body dto.CommentRequest
}

// UpdateCommentInput wraps a comment update request for huma.
type UpdateCommentInput struct {
	ID   string `path:"id" doc:"Comment ID"`
	Body dto.CommentRequest
}

// CommentOutput wraps a comment for huma.
type CommentOutput struct {
	Body dto.Comment
}

// CommentListOutput wraps a list of comments for huma.
type CommentListOutput struct {
	Body []dto.Comment
}

// === Handlers ===

func (s *Server) handleListComments(ctx context.Context, input *StoryIDInput) (*CommentListOutput, error) {
	comments, err := s.services.Comment.List(ctx, viewerFrom(ctx), domain.ID(input.ID))
	if err != nil {
		return nil, err
	}
	return &CommentListOutput{Body: dto.CommentsOf(comments)}, nil
}

func (s *Server) handleCreateComment(ctx context.Context, input *CreateCommentInput) (*CommentOutput, error) {
	comment, err := s.services.Comment.Create(ctx, viewerFrom(ctx), domain.ID(input.ID), input.Body.Content)
	if err != nil {
		return nil, err
	}
	return &CommentOutput{Body: dto.CommentOf(comment)}, nil
}

func (s *Server) handleUpdateComment(ctx context.Context, input *UpdateCommentInput) (*CommentOutput, error) {
	comment, err := s.services.Comment.Update(ctx, viewerFrom(ctx), domain.ID(input.ID), input.Body.Content)
	if err != nil {
		return nil, err
	}
	return &CommentOutput{Body: dto.CommentOf(comment)}, nil
}

func (s *Server) handleDeleteComment(ctx context.Context, input *CommentIDInput) (*struct{}, error) {
	if err := s.services.Comment.Delete(ctx, viewerFrom(ctx), domain.ID(input.ID)); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleLikeComment(ctx context.Context, input *CommentIDInput) (*LikesOutput, error) {
	return s.setCommentLike(ctx, input.ID, true)
}

func (s *Server) handleUnlikeComment(ctx context.Context, input *CommentIDInput) (*LikesOutput, error) {
	return s.setCommentLike(ctx, input.ID, false)
}

func (s *Server) setCommentLike(ctx context.Context, id string, liked bool) (*LikesOutput, error) {
	likes, err := s.services.Comment.SetLike(ctx, viewerFrom(ctx), domain.ID(id), liked)
	if err != nil {
		return nil, err
	}
	return &LikesOutput{Body: dto.Likes{Likes: likes}}, nil
}
