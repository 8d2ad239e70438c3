// Package client exposes the TaleForge REST routes as typed calls over the gateway.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/gateway"
)

// Sender is the gateway operation the client needs.
type Sender interface {
	Send(ctx context.Context, req gateway.Request, out any) error
}

// Client is a typed view of the API route set.
type Client struct {
	gw Sender
}

// New creates a client that issues every call through gw.
func New(gw Sender) *Client {
	return &Client{gw: gw}
}

func storyPath(id domain.ID, suffix string) string {
	return "/stories/" + url.PathEscape(id.String()) + suffix
}

func commentPath(id domain.ID, suffix string) string {
	return "/comments/" + url.PathEscape(id.String()) + suffix
}

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/login", Body: creds, Public: true}, &out)
	return out, err
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, profile domain.RegisterProfile) (domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/register", Body: profile, Public: true}, &out)
	return out, err
}

// Me returns the user the current credential belongs to.
func (c *Client) Me(ctx context.Context) (domain.UserSummary, error) {
	var out domain.UserSummary
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: "/auth/me"}, &out)
	return out, err
}

// ListStories fetches one page of published stories. Search text is not part of
// the route and is ignored here.
func (c *Client) ListStories(ctx context.Context, q domain.ListingQuery) (domain.Page[domain.Story], error) {
	q = q.WithDefaults()
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("size", strconv.Itoa(q.PageSize))
	params.Set("sortBy", string(q.SortKey))
	params.Set("direction", string(q.Direction))
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}

	var out domain.Page[domain.Story]
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: "/stories", Query: params}, &out)
	return out, err
}

// SearchStories runs a relevance-ranked full-text search over published stories.
// page is zero-based; a non-positive size uses the server default.
func (c *Client) SearchStories(ctx context.Context, text string, page, size int) (domain.Page[domain.Story], error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("page", strconv.Itoa(page))
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}

	var out domain.Page[domain.Story]
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: "/stories/search", Query: params}, &out)
	return out, err
}

// MyStories returns every story of the current user, drafts included.
func (c *Client) MyStories(ctx context.Context) ([]domain.Story, error) {
	var out []domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: "/stories/me"}, &out)
	return out, err
}

// TopRated returns the highest rated published stories. A non-positive limit
// uses the server default.
func (c *Client) TopRated(ctx context.Context, limit int) ([]domain.Story, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var out []domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: "/stories/top-rated", Query: params}, &out)
	return out, err
}

// StoriesByAuthor returns an author's published stories, newest first.
func (c *Client) StoriesByAuthor(ctx context.Context, authorID domain.ID) ([]domain.Story, error) {
	var out []domain.Story
	err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/stories/author/" + url.PathEscape(authorID.String()),
	}, &out)
	return out, err
}

// Story fetches one story.
func (c *Client) Story(ctx context.Context, id domain.ID) (domain.Story, error) {
	var out domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: storyPath(id, "")}, &out)
	return out, err
}

// CreateStory submits a new draft story.
func (c *Client) CreateStory(ctx context.Context, draft domain.StoryDraft) (domain.Story, error) {
	var out domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: "/stories", Body: draft}, &out)
	return out, err
}

// UpdateStory replaces the editable fields of a story.
func (c *Client) UpdateStory(ctx context.Context, id domain.ID, draft domain.StoryDraft) (domain.Story, error) {
	var out domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPut, Path: storyPath(id, ""), Body: draft}, &out)
	return out, err
}

// DeleteStory removes a story.
func (c *Client) DeleteStory(ctx context.Context, id domain.ID) error {
	return c.gw.Send(ctx, gateway.Request{Method: http.MethodDelete, Path: storyPath(id, "")}, nil)
}

// RecordView counts one view and returns the new total.
func (c *Client) RecordView(ctx context.Context, id domain.ID) (int64, error) {
	var out domain.ViewCount
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: storyPath(id, "/view")}, &out)
	return out.Views, err
}

// LikeStory likes a story and returns the server's like count.
func (c *Client) LikeStory(ctx context.Context, id domain.ID) (int64, error) {
	var out domain.LikeCount
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: storyPath(id, "/like")}, &out)
	return out.Likes, err
}

// UnlikeStory removes the viewer's like and returns the server's like count.
func (c *Client) UnlikeStory(ctx context.Context, id domain.ID) (int64, error) {
	var out domain.LikeCount
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodDelete, Path: storyPath(id, "/like")}, &out)
	return out.Likes, err
}

// RateStory records the current user's rating and returns the story's new mean.
func (c *Client) RateStory(ctx context.Context, id domain.ID, value float64) (domain.RatingSummary, error) {
	body := struct {
		Rating float64 `json:"rating"`
	}{value}

	var out domain.RatingSummary
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: storyPath(id, "/rate"), Body: body}, &out)
	return out, err
}

// StoryLikeStatus reports whether the current user likes the story.
func (c *Client) StoryLikeStatus(ctx context.Context, id domain.ID) (bool, error) {
	var out bool
	err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/likes/stories/" + url.PathEscape(id.String()) + "/status",
	}, &out)
	return out, err
}

// Publish makes a story public.
func (c *Client) Publish(ctx context.Context, id domain.ID) (domain.Story, error) {
	var out domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: storyPath(id, "/publish")}, &out)
	return out, err
}

// Unpublish returns a story to draft.
func (c *Client) Unpublish(ctx context.Context, id domain.ID) (domain.Story, error) {
	var out domain.Story
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: storyPath(id, "/unpublish")}, &out)
	return out, err
}

// Comments fetches the whole thread of a story in server order.
func (c *Client) Comments(ctx context.Context, storyID domain.ID) ([]domain.Comment, error) {
	var out []domain.Comment
	err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/comments/story/" + url.PathEscape(storyID.String()),
	}, &out)
	return out, err
}

// CreateComment adds a comment to a story.
func (c *Client) CreateComment(ctx context.Context, storyID domain.ID, content string) (domain.Comment, error) {
	var out domain.Comment
	err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/comments/story/" + url.PathEscape(storyID.String()),
		Body:   domain.CommentDraft{Content: content},
	}, &out)
	return out, err
}

// UpdateComment replaces a comment's content.
func (c *Client) UpdateComment(ctx context.Context, id domain.ID, content string) (domain.Comment, error) {
	var out domain.Comment
	err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   commentPath(id, ""),
		Body:   domain.CommentDraft{Content: content},
	}, &out)
	return out, err
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, id domain.ID) error {
	return c.gw.Send(ctx, gateway.Request{Method: http.MethodDelete, Path: commentPath(id, "")}, nil)
}

// LikeComment likes a comment and returns the server's like count.
func (c *Client) LikeComment(ctx context.Context, id domain.ID) (int64, error) {
	var out domain.LikeCount
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodPost, Path: commentPath(id, "/like")}, &out)
	return out.Likes, err
}

// UnlikeComment removes the viewer's like and returns the server's like count.
func (c *Client) UnlikeComment(ctx context.Context, id domain.ID) (int64, error) {
	var out domain.LikeCount
	err := c.gw.Send(ctx, gateway.Request{Method: http.MethodDelete, Path: commentPath(id, "/like")}, &out)
	return out.Likes, err
}
