package api

import (
	"github.com/taleforge/taleforge/internal/service"
	"github.com/taleforge/taleforge/internal/sse"
)

// Services groups the business services used by the API server.
type Services struct {
	Auth    *service.AuthService
	Story   *service.StoryService
	Comment *service.CommentService
	// Events serves GET /events when set.
	Events *sse.Manager
}
