package dto

import (
	"time"

	"github.com/taleforge/taleforge/internal/domain"
)

// Comment is a comment as returned by the API. Liked is relative to the caller.
type Comment struct {
	ID        string    `json:"id" doc:"Comment ID"`
	StoryID   string    `json:"storyId" doc:"Story the comment belongs to"`
	Content   string    `json:"content" doc:"Comment text"`
	Author    User      `json:"author" doc:"Author"`
	Likes     int64     `json:"likes" doc:"Total likes"`
	Liked     bool      `json:"liked" doc:"Whether the caller has liked the comment"`
	Edited    bool      `json:"edited" doc:"Whether the comment was edited after posting"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time `json:"updatedAt" doc:"Last edit time"`
}

// CommentOf converts a domain comment.
func CommentOf(c domain.Comment) Comment {
	return Comment{
		ID:        c.ID.String(),
		StoryID:   c.StoryID.String(),
		Content:   c.Content,
		Author:    UserOf(c.Author.Public()),
		Likes:     c.Likes,
		Liked:     c.Liked,
		Edited:    c.Edited,
		CreatedAt: c.CreatedAt.Time,
		UpdatedAt: c.UpdatedAt.Time,
	}
}

// CommentsOf converts a slice of domain comments.
func CommentsOf(comments []domain.Comment) []Comment {
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = CommentOf(c)
	}
	return out
}

// CommentRequest is the body of comment create and update requests.
type CommentRequest struct {
	Content string `json:"content" validate:"notblank,max=1000" doc:"Comment text (up to 1000 chars)"`
}
