package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleforge/taleforge/internal/api/dto"
	"github.com/taleforge/taleforge/internal/auth"
	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/search"
	"github.com/taleforge/taleforge/internal/service"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

type testServer struct {
	api    humatest.TestAPI
	server *Server
	store  *store.Store
}

func setupTestServer(t *testing.T, cfgs ...func(*config.ServerConfig)) *testServer {
	t.Helper()

	st, err := store.OpenInMemory(nil)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(make([]byte, auth.KeySize), time.Hour)
	require.NoError(t, err)

	index, err := search.Open(search.Options{})
	require.NoError(t, err)

	v := validation.New()
	stories := service.NewStoryService(st, v, nil, service.WithSearchIndex(index))
	services := &Services{
		Auth:    service.NewAuthService(st, tokens, v, nil),
		Story:   stories,
		Comment: service.NewCommentService(st, stories, v, nil),
	}

	cfg := config.ServerConfig{LoginRatePerMinute: 1000}
	for _, c := range cfgs {
		c(&cfg)
	}

	s := NewServer(st, services, cfg, logger.Discard())
	t.Cleanup(func() {
		s.Close()
		_ = index.Close()
		_ = st.Close()
	})

	return &testServer{api: humatest.Wrap(t, s.api), server: s, store: st}
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func (ts *testServer) register(t *testing.T, username string) dto.AuthResponse {
	t.Helper()
	resp := ts.api.Post("/auth/register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decode[dto.AuthResponse](t, resp)
}

func (ts *testServer) createStory(t *testing.T, token, title string, tags ...string) dto.Story {
	t.Helper()
	body := map[string]any{
		"title":       title,
		"description": "A story worth telling",
		"content":     strings.Repeat("Once upon a time. ", 4),
	}
	if len(tags) > 0 {
		body["tags"] = tags
	}
	resp := ts.api.Post("/stories", bearer(token), body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[dto.Story](t, resp)
}

func (ts *testServer) publish(t *testing.T, token, id string) {
	t.Helper()
	resp := ts.api.Post("/stories/"+id+"/publish", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
}

func TestHealthCheck_DatabaseClosed(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.store.Close())

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "unhealthy", decode[HealthResponse](t, resp).Status)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	ts := setupTestServer(t)

	reg := ts.register(t, "ann")
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "ann", reg.User.Username)
	assert.Equal(t, "ann@example.com", reg.User.Email)

	resp := ts.api.Post("/auth/login", map[string]any{"email": "ANN@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	login := decode[dto.AuthResponse](t, resp)
	assert.Equal(t, reg.User.ID, login.User.ID)

	resp = ts.api.Get("/auth/me", bearer(login.Token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, reg.User.ID, decode[dto.User](t, resp).ID)
}

func TestAuth_MeRequiresValidToken(t *testing.T) {
	ts := setupTestServer(t)

	for name, args := range map[string][]any{
		"no header":     nil,
		"garbage token": {bearer("v4.local.nonsense")},
		"wrong scheme":  {"Authorization: Basic abc"},
	} {
		t.Run(name, func(t *testing.T) {
			resp := ts.api.Get("/auth/me", args...)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Equal(t, "UNAUTHORIZED", decode[APIError](t, resp).Code)
		})
	}
}

func TestAuth_LoginFailures(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "ann")

	resp := ts.api.Post("/auth/login", map[string]any{"email": "ann@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[APIError](t, resp).Code)

	resp = ts.api.Post("/auth/login", map[string]any{"email": "ann@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[APIError](t, resp).Code)
}

func TestAuth_RegisterConflict(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "ann")

	resp := ts.api.Post("/auth/register", map[string]any{
		"username": "other",
		"email":    "Ann@Example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
	body := decode[APIError](t, resp)
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Equal(t, map[string]any{"email": "is already registered"}, body.Details)
}

func TestAuth_RateLimited(t *testing.T) {
	ts := setupTestServer(t, func(c *config.ServerConfig) { c.LoginRatePerMinute = 2 })

	creds := map[string]any{"email": "nobody@example.com", "password": "secret123"}
	for range 2 {
		resp := ts.api.Post("/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := ts.api.Post("/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "UNAVAILABLE", decode[APIError](t, resp).Code)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, ts.api.Get("/stories").Code)
}

func TestStories_DraftLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")

	story := ts.createStory(t, ann.Token, "The Lighthouse", " Sea ", "sea", "Mystery")
	assert.False(t, story.Published)
	assert.Equal(t, []string{"sea", "mystery"}, story.Tags)
	assert.Empty(t, story.Author.Email, "author email is private")

	// Drafts are invisible to everyone but the author.
	assert.Equal(t, http.StatusNotFound, ts.api.Get("/stories/"+story.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Get("/stories/"+story.ID, bearer(bob.Token)).Code)
	assert.Equal(t, http.StatusOK, ts.api.Get("/stories/"+story.ID, bearer(ann.Token)).Code)
	assert.Empty(t, decode[dto.Page[dto.Story]](t, ts.api.Get("/stories")).Content)

	mine := decode[[]dto.Story](t, ts.api.Get("/stories/me", bearer(ann.Token)))
	require.Len(t, mine, 1)

	ts.publish(t, ann.Token, story.ID)
	page := decode[dto.Page[dto.Story]](t, ts.api.Get("/stories"))
	require.Len(t, page.Content, 1)
	assert.Equal(t, 1, page.TotalElements)

	resp := ts.api.Post("/stories/"+story.ID+"/unpublish", bearer(ann.Token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[dto.Story](t, resp).Published)
}

func TestStories_Ownership(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")
	story := ts.createStory(t, ann.Token, "The Lighthouse")
	ts.publish(t, ann.Token, story.ID)

	update := map[string]any{
		"title":       "Stolen",
		"description": "Not my story at all",
		"content":     strings.Repeat("x", 60),
	}
	resp := ts.api.Put("/stories/"+story.ID, bearer(bob.Token), update)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "FORBIDDEN", decode[APIError](t, resp).Code)

	assert.Equal(t, http.StatusForbidden, ts.api.Post("/stories/"+story.ID+"/unpublish", bearer(bob.Token)).Code)
	assert.Equal(t, http.StatusForbidden, ts.api.Delete("/stories/"+story.ID, bearer(bob.Token)).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.api.Delete("/stories/"+story.ID).Code)

	resp = ts.api.Put("/stories/"+story.ID, bearer(ann.Token), update)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Stolen", decode[dto.Story](t, resp).Title)

	resp = ts.api.Delete("/stories/"+story.ID, bearer(ann.Token))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())
	assert.Equal(t, http.StatusNotFound, ts.api.Get("/stories/"+story.ID).Code)
}

func TestStories_CreateValidation(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")

	resp := ts.api.Post("/stories", bearer(ann.Token), map[string]any{
		"title":       "Hi",
		"description": "A story worth telling",
		"content":     "too short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	body := decode[APIError](t, resp)
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Contains(t, body.Details, "title")
	assert.Contains(t, body.Details, "content")

	assert.Equal(t, http.StatusUnauthorized, ts.api.Post("/stories", map[string]any{
		"title":       "Anonymous",
		"description": "A story worth telling",
		"content":     strings.Repeat("x", 60),
	}).Code)
}

func TestStories_ListingQuery(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")

	ids := make([]string, 3)
	for i, title := range []string{"First tale", "Second tale", "Third tale"} {
		s := ts.createStory(t, ann.Token, title, "common")
		ts.publish(t, ann.Token, s.ID)
		ids[i] = s.ID
	}
	for range 2 {
		ts.api.Post("/stories/"+ids[1]+"/view", bearer(bob.Token))
	}
	ts.api.Post("/stories/" + ids[2] + "/view")

	page := decode[dto.Page[dto.Story]](t, ts.api.Get("/stories?sortBy=views&direction=DESC&size=2&tag=COMMON"))
	require.Len(t, page.Content, 2)
	assert.Equal(t, ids[1], page.Content[0].ID)
	assert.Equal(t, ids[2], page.Content[1].ID)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 3, page.TotalElements)

	resp := ts.api.Get("/stories?size=101")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decode[APIError](t, resp).Details, "size")

	assert.Equal(t, http.StatusBadRequest, ts.api.Get("/stories?sortBy=title").Code)
	assert.Equal(t, http.StatusBadRequest, ts.api.Get("/stories?page=-1").Code)
}

func TestStories_Search(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")

	lantern := ts.createStory(t, ann.Token, "The Lantern Keeper")
	ts.publish(t, ann.Token, lantern.ID)
	harbour := ts.createStory(t, ann.Token, "Harbour Lights", "lantern")
	ts.publish(t, ann.Token, harbour.ID)
	ts.createStory(t, ann.Token, "Lantern draft")

	page := decode[dto.Page[dto.Story]](t, ts.api.Get("/stories/search?q=lantern"))
	require.Len(t, page.Content, 2, "drafts are never indexed")
	assert.Equal(t, lantern.ID, page.Content[0].ID)
	assert.Equal(t, 2, page.TotalElements)

	// Unpublishing drops the story from the index.
	resp := ts.api.Post("/stories/"+lantern.ID+"/unpublish", bearer(ann.Token))
	require.Equal(t, http.StatusOK, resp.Code)
	page = decode[dto.Page[dto.Story]](t, ts.api.Get("/stories/search?q=lantern&size=5"))
	require.Len(t, page.Content, 1)
	assert.Equal(t, harbour.ID, page.Content[0].ID)
	assert.Equal(t, 5, page.Size)

	resp = ts.api.Get("/stories/search?q=%20")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decode[APIError](t, resp).Details, "q")
}

func TestStories_ViewsAndLikes(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")
	story := ts.createStory(t, ann.Token, "The Lighthouse")
	ts.publish(t, ann.Token, story.ID)

	resp := ts.api.Post("/stories/" + story.ID + "/view")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(1), decode[dto.Views](t, resp).Views)

	status := func() bool {
		resp := ts.api.Get("/likes/stories/"+story.ID+"/status", bearer(bob.Token))
		require.Equal(t, http.StatusOK, resp.Code)
		return decode[bool](t, resp)
	}
	assert.False(t, status())

	for range 2 {
		resp = ts.api.Post("/stories/"+story.ID+"/like", bearer(bob.Token))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, int64(1), decode[dto.Likes](t, resp).Likes, "liking twice counts once")
	}
	assert.True(t, status())

	for range 2 {
		resp = ts.api.Delete("/stories/"+story.ID+"/like", bearer(bob.Token))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, int64(0), decode[dto.Likes](t, resp).Likes)
	}
	assert.False(t, status())

	assert.Equal(t, http.StatusUnauthorized, ts.api.Post("/stories/"+story.ID+"/like").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.api.Get("/likes/stories/"+story.ID+"/status").Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Post("/stories/999/like", bearer(bob.Token)).Code)
}

func TestStories_Ratings(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")
	cat := ts.register(t, "cat")
	best := ts.createStory(t, ann.Token, "Best Tale")
	ts.publish(t, ann.Token, best.ID)
	good := ts.createStory(t, ann.Token, "Good Tale")
	ts.publish(t, ann.Token, good.ID)
	ts.publish(t, ann.Token, ts.createStory(t, ann.Token, "Unrated Tale").ID)

	rate := func(token, id string, value float64) *httptest.ResponseRecorder {
		return ts.api.Post("/stories/"+id+"/rate", bearer(token), map[string]any{"rating": value})
	}

	resp := rate(bob.Token, best.ID, 5)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, dto.Rating{Rating: 5, Ratings: 1}, decode[dto.Rating](t, resp))

	resp = rate(cat.Token, best.ID, 4)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, dto.Rating{Rating: 4.5, Ratings: 2}, decode[dto.Rating](t, resp))

	resp = rate(bob.Token, good.ID, 3)
	require.Equal(t, http.StatusOK, resp.Code)

	t.Run("invalid values are rejected", func(t *testing.T) {
		for _, v := range []float64{-1, 5.5} {
			assert.Equal(t, http.StatusBadRequest, rate(bob.Token, best.ID, v).Code, "rating %v", v)
		}
	})
	t.Run("authors cannot rate their own stories", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, rate(ann.Token, best.ID, 5).Code)
	})
	t.Run("anonymous readers cannot rate", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, ts.api.Post("/stories/"+best.ID+"/rate", map[string]any{"rating": 3}).Code)
	})

	resp = ts.api.Get("/stories/" + best.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[dto.Story](t, resp)
	assert.Equal(t, 4.5, got.Rating)
	assert.Equal(t, int64(2), got.Ratings)

	resp = ts.api.Get("/stories/top-rated")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	top := decode[[]dto.Story](t, resp)
	require.Len(t, top, 2, "unrated stories are left out")
	assert.Equal(t, best.ID, top[0].ID)
	assert.Equal(t, good.ID, top[1].ID)

	resp = ts.api.Get("/stories/top-rated?limit=1")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]dto.Story](t, resp), 1)

	resp = ts.api.Get("/stories?sortBy=rating&direction=asc")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page := decode[dto.Page[dto.Story]](t, resp)
	require.Len(t, page.Content, 3)
	assert.Equal(t, "Unrated Tale", page.Content[0].Title)
	assert.Equal(t, best.ID, page.Content[2].ID)
}

func TestStories_ByAuthor(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")
	published := ts.createStory(t, ann.Token, "Out There")
	ts.publish(t, ann.Token, published.ID)
	ts.createStory(t, ann.Token, "Still Drafting")
	ts.publish(t, bob.Token, ts.createStory(t, bob.Token, "Bob's Tale").ID)

	resp := ts.api.Get("/stories/author/" + ann.User.ID)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	stories := decode[[]dto.Story](t, resp)
	require.Len(t, stories, 1, "drafts stay private")
	assert.Equal(t, published.ID, stories[0].ID)

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/stories/author/999").Code)
}

func TestComments_Flow(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")
	story := ts.createStory(t, ann.Token, "The Lighthouse")
	ts.publish(t, ann.Token, story.ID)

	path := "/comments/story/" + story.ID
	resp := ts.api.Post(path, bearer(bob.Token), map[string]any{"content": "  Lovely  "})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	first := decode[dto.Comment](t, resp)
	assert.Equal(t, "Lovely", first.Content)
	assert.Equal(t, story.ID, first.StoryID)

	resp = ts.api.Post(path, bearer(ann.Token), map[string]any{"content": "Thanks!"})
	require.Equal(t, http.StatusCreated, resp.Code)
	second := decode[dto.Comment](t, resp)

	resp = ts.api.Post(path, bearer(ann.Token), map[string]any{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	comments := decode[[]dto.Comment](t, ts.api.Get(path))
	require.Len(t, comments, 2)
	assert.Equal(t, second.ID, comments[0].ID, "newest first")

	// Self-likes are rejected; likes from others are counted once.
	assert.Equal(t, http.StatusForbidden, ts.api.Post("/comments/"+first.ID+"/like", bearer(bob.Token)).Code)
	resp = ts.api.Post("/comments/"+first.ID+"/like", bearer(ann.Token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(1), decode[dto.Likes](t, resp).Likes)

	comments = decode[[]dto.Comment](t, ts.api.Get(path, bearer(ann.Token)))
	assert.True(t, comments[1].Liked)
	comments = decode[[]dto.Comment](t, ts.api.Get(path, bearer(bob.Token)))
	assert.False(t, comments[1].Liked, "liked is relative to the caller")

	resp = ts.api.Put("/comments/"+first.ID, bearer(ann.Token), map[string]any{"content": "Hijack"})
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = ts.api.Put("/comments/"+first.ID, bearer(bob.Token), map[string]any{"content": "Lovely indeed"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[dto.Comment](t, resp).Edited)

	resp = ts.api.Delete("/comments/"+first.ID+"/like", bearer(ann.Token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(0), decode[dto.Likes](t, resp).Likes)

	assert.Equal(t, http.StatusNoContent, ts.api.Delete("/comments/"+first.ID, bearer(bob.Token)).Code)
	assert.Len(t, decode[[]dto.Comment](t, ts.api.Get(path)), 1)
}

func TestComments_DraftStoryHidden(t *testing.T) {
	ts := setupTestServer(t)
	ann := ts.register(t, "ann")
	bob := ts.register(t, "bob")
	story := ts.createStory(t, ann.Token, "The Lighthouse")

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/comments/story/"+story.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Post("/comments/story/"+story.ID, bearer(bob.Token), map[string]any{"content": "hi"}).Code)
}

func TestRouter_Fallbacks(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, resp).Code)

	resp = ts.api.Do(http.MethodOptions, "/stories",
		"Origin: http://localhost:3000",
		"Access-Control-Request-Method: GET",
	)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
