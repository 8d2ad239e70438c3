package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleforge/taleforge/internal/api"
	"github.com/taleforge/taleforge/internal/auth"
	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/gateway"
	"github.com/taleforge/taleforge/internal/service"
	"github.com/taleforge/taleforge/internal/session"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

func startServer(t *testing.T) string {
	t.Helper()

	st, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(make([]byte, auth.KeySize), time.Hour)
	require.NoError(t, err)

	v := validation.New()
	stories := service.NewStoryService(st, v, nil)
	srv := api.NewServer(st, &api.Services{
		Auth:    service.NewAuthService(st, tokens, v, nil),
		Story:   stories,
		Comment: service.NewCommentService(st, stories, v, nil),
	}, config.ServerConfig{LoginRatePerMinute: 1000}, nil)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		_ = st.Close()
	})
	return ts.URL
}

func clientConfig(baseURL string) config.ClientConfig {
	return config.ClientConfig{
		BaseURL:     baseURL,
		ListingMode: config.ListingModeClient,
		PageSize:    9,
		TopTags:     6,
	}
}

func newApp(t *testing.T, cfg config.ClientConfig, opts ...Option) *App {
	t.Helper()
	a, err := New(cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Start(context.Background()))
	return a
}

func signUp(t *testing.T, a *App, username string) domain.UserSummary {
	t.Helper()
	user, err := a.Session().Register(context.Background(), domain.RegisterProfile{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return user
}

var draft = domain.StoryDraft{
	Title:       "The Lantern Keeper",
	Description: "A keeper of lights at the edge of the world.",
	Content:     strings.Repeat("The lantern burned through the long night. ", 3),
	Tags:        []string{"fantasy", "sea"},
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New(clientConfig("localhost:8080"), nil, WithCredentials(session.NewMemoryCredentials()))
	require.Error(t, err)
}

func TestNew_RequestTimeoutAppliesToCustomHTTPClient(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	cfg := clientConfig(slow.URL)
	cfg.RequestTimeout = 50 * time.Millisecond
	a, err := New(cfg, nil,
		WithCredentials(session.NewMemoryCredentials()),
		WithGatewayOptions(gateway.WithHTTPClient(&http.Client{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	done := make(chan error, 1)
	go func() {
		_, err := a.Client().Story(context.Background(), "1")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domainerrors.ErrUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("request outlived the configured timeout")
	}
}

func TestAuthorAndReader(t *testing.T) {
	ctx := context.Background()
	base := startServer(t)

	authorCfg := clientConfig(base)
	authorCfg.CountSelfViews = false
	author := newApp(t, authorCfg, WithCredentials(session.NewMemoryCredentials()))
	readerCfg := clientConfig(base)
	readerCfg.CountSelfViews = true
	reader := newApp(t, readerCfg, WithCredentials(session.NewMemoryCredentials()))

	signUp(t, author, "quill")
	signUp(t, reader, "reader")

	created, err := author.Client().CreateStory(ctx, draft)
	require.NoError(t, err)
	assert.False(t, created.Published)

	// Drafts stay out of the public listing.
	res, err := reader.Listing().Query(ctx, reader.Query(domain.ListingQuery{}))
	require.NoError(t, err)
	assert.Empty(t, res.Page.Content)

	authorView := author.Engagement()
	require.NoError(t, authorView.Load(ctx, created.ID))
	authorView.Wait()
	snap := authorView.Snapshot()
	assert.True(t, snap.IsAuthor)
	assert.False(t, snap.CanLike)
	assert.False(t, snap.ViewCounted, "self views are off for this author")
	assert.ErrorIs(t, authorView.ToggleLike(ctx), domainerrors.ErrSelfInteraction)

	require.NoError(t, authorView.Publish(ctx))
	assert.True(t, authorView.Snapshot().Story.Published)

	res, err = reader.Listing().Query(ctx, reader.Query(domain.ListingQuery{Tag: "FANTASY"}))
	require.NoError(t, err)
	require.Len(t, res.Page.Content, 1)
	assert.Equal(t, created.ID, res.Page.Content[0].ID)
	assert.Equal(t, []domain.TagFrequency{{Tag: "fantasy", Count: 1}, {Tag: "sea", Count: 1}}, res.PopularTags)

	readerView := reader.Engagement()
	require.NoError(t, readerView.Load(ctx, created.ID))
	readerView.Wait()
	snap = readerView.Snapshot()
	assert.True(t, snap.ViewCounted)
	assert.Equal(t, int64(1), snap.Story.Views)
	assert.True(t, snap.CanLike)

	require.NoError(t, readerView.ToggleLike(ctx))
	snap = readerView.Snapshot()
	assert.True(t, snap.HasLiked)
	assert.Equal(t, int64(1), snap.Story.Likes)

	// A fresh engine learns the like status from the server.
	again := reader.Engagement()
	require.NoError(t, again.Load(ctx, created.ID))
	again.Wait()
	assert.True(t, again.Snapshot().HasLiked)

	require.NoError(t, readerView.ToggleLike(ctx))
	assert.Equal(t, int64(0), readerView.Snapshot().Story.Likes)

	// Comments: the reader writes, the author likes it back.
	readerThread := reader.Thread(created.ID)
	require.NoError(t, readerThread.Load(ctx))
	comment, err := readerThread.Create(ctx, "  Lovely opening.  ")
	require.NoError(t, err)
	assert.Equal(t, "Lovely opening.", comment.Content)
	assert.ErrorIs(t, readerThread.ToggleLike(ctx, comment.ID), domainerrors.ErrSelfInteraction)

	authorThread := author.Thread(created.ID)
	require.NoError(t, authorThread.Load(ctx))
	require.Len(t, authorThread.Snapshot().Comments, 1)
	require.NoError(t, authorThread.ToggleLike(ctx, comment.ID))
	liked := authorThread.Snapshot().Comments[0]
	assert.True(t, liked.Liked)
	assert.Equal(t, int64(1), liked.Likes)

	require.NoError(t, readerThread.BeginEdit(comment.ID))
	require.NoError(t, readerThread.SetDraft("Lovely opening, and the ending too."))
	edited, err := readerThread.SaveEdit(ctx)
	require.NoError(t, err)
	assert.True(t, edited.Edited)

	// Unpublishing hides the story from the listing but not from its author.
	require.NoError(t, authorView.Unpublish(ctx))
	res, err = reader.Listing().Query(ctx, reader.Query(domain.ListingQuery{}))
	require.NoError(t, err)
	assert.Empty(t, res.Page.Content)
	mine, err := author.Listing().Mine(ctx, author.Query(domain.ListingQuery{}))
	require.NoError(t, err)
	assert.Len(t, mine.Page.Content, 1)

	require.NoError(t, authorView.Delete(ctx, func() bool { return true }))
	_, err = reader.Client().Story(ctx, created.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := clientConfig(startServer(t))
	cfg.CredentialsPath = filepath.Join(t.TempDir(), "credentials.db")

	first, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	user := signUp(t, first, "keeper")
	require.NoError(t, first.Close())

	second := newApp(t, cfg)
	got, ok := second.Session().User()
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)

	me, err := second.Client().Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "keeper", me.Username)

	second.Session().Logout()
	assert.False(t, second.Session().Snapshot().Authenticated())

	_, err = second.Client().Me(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}
