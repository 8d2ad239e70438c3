package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleforge/taleforge/internal/auth"
	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/search"
	"github.com/taleforge/taleforge/internal/service"
	"github.com/taleforge/taleforge/internal/sse"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

type fixture struct {
	auth     *service.AuthService
	stories  *service.StoryService
	comments *service.CommentService
}

func setup(t *testing.T, opts ...service.StoryOption) fixture {
	t.Helper()
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tokens, err := auth.NewTokenService(make([]byte, auth.KeySize), time.Hour)
	require.NoError(t, err)

	v := validation.New()
	stories := service.NewStoryService(s, v, nil, opts...)
	return fixture{
		auth:     service.NewAuthService(s, tokens, v, nil),
		stories:  stories,
		comments: service.NewCommentService(s, stories, v, nil),
	}
}

func (f fixture) register(t *testing.T, username string) *domain.UserSummary {
	t.Helper()
	res, err := f.auth.Register(context.Background(), domain.RegisterProfile{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return &res.User
}

var validDraft = domain.StoryDraft{
	Title:       "My Tale",
	Description: "A decent description",
	Content:     strings.Repeat("x", 60),
	Tags:        []string{" Fantasy ", "fantasy", "Epic"},
}

func requireCode(t *testing.T, err error, code domainerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, domainerrors.CodeOf(err), "error: %v", err)
}

func TestAuth_RegisterLoginVerify(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	reg, err := f.auth.Register(ctx, domain.RegisterProfile{
		Username: "ann", Email: " Ann@Example.com ", Password: "secret123", DisplayName: " Ann A. ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "ann@example.com", reg.User.Email)
	assert.Equal(t, "Ann A.", reg.User.DisplayName)
	assert.Equal(t, []string{domain.RoleUser}, reg.User.Roles)

	login, err := f.auth.Login(ctx, domain.Credentials{Email: "ANN@example.com", Password: "secret123"})
	require.NoError(t, err)

	me, err := f.auth.Verify(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, me.ID)

	_, err = f.auth.Verify(ctx, "v4.local.garbage")
	requireCode(t, err, domainerrors.CodeUnauthorized)
}

func TestAuth_LoginFailuresLookAlike(t *testing.T) {
	f := setup(t)
	f.register(t, "ann")

	_, err := f.auth.Login(context.Background(), domain.Credentials{Email: "ann@example.com", Password: "wrong-one"})
	requireCode(t, err, domainerrors.CodeInvalidCredentials)

	_, err = f.auth.Login(context.Background(), domain.Credentials{Email: "nobody@example.com", Password: "secret123"})
	requireCode(t, err, domainerrors.CodeInvalidCredentials)

	_, err = f.auth.Login(context.Background(), domain.Credentials{Email: "not-an-email", Password: "x"})
	requireCode(t, err, domainerrors.CodeValidation)
}

func TestAuth_RegisterConflicts(t *testing.T) {
	f := setup(t)
	f.register(t, "ann")

	_, err := f.auth.Register(context.Background(), domain.RegisterProfile{Username: "other", Email: "ANN@example.com", Password: "secret123"})
	requireCode(t, err, domainerrors.CodeConflict)
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Fields(), "email")

	_, err = f.auth.Register(context.Background(), domain.RegisterProfile{Username: "Ann", Email: "new@example.com", Password: "secret123"})
	requireCode(t, err, domainerrors.CodeConflict)

	_, err = f.auth.Register(context.Background(), domain.RegisterProfile{Username: "x", Email: "x@example.com", Password: "1"})
	requireCode(t, err, domainerrors.CodeValidation)
}

func TestStories_DraftVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob := f.register(t, "ann"), f.register(t, "bob")

	st, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)
	assert.False(t, st.Published)
	assert.Equal(t, []string{"fantasy", "epic"}, st.Tags)
	assert.Empty(t, st.Author.Email, "embedded authors are public profiles")

	_, err = f.stories.Get(ctx, ann, st.ID)
	require.NoError(t, err)
	_, err = f.stories.Get(ctx, bob, st.ID)
	requireCode(t, err, domainerrors.CodeNotFound)
	_, err = f.stories.Get(ctx, nil, st.ID)
	requireCode(t, err, domainerrors.CodeNotFound)
	_, err = f.stories.RecordView(ctx, bob, st.ID)
	requireCode(t, err, domainerrors.CodeNotFound)

	page, err := f.stories.List(ctx, domain.ListingQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Content)

	mine, err := f.stories.Mine(ctx, ann)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestStories_OwnershipAndLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob := f.register(t, "ann"), f.register(t, "bob")

	st, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)

	_, err = f.stories.SetPublished(ctx, nil, st.ID, true)
	requireCode(t, err, domainerrors.CodeUnauthorized)

	pub, err := f.stories.SetPublished(ctx, ann, st.ID, true)
	require.NoError(t, err)
	assert.True(t, pub.Published)

	_, err = f.stories.SetPublished(ctx, bob, st.ID, false)
	requireCode(t, err, domainerrors.CodeForbidden)
	_, err = f.stories.Update(ctx, bob, st.ID, validDraft)
	requireCode(t, err, domainerrors.CodeForbidden)
	requireCode(t, f.stories.Delete(ctx, bob, st.ID), domainerrors.CodeForbidden)

	page, err := f.stories.List(ctx, domain.ListingQuery{})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "ann", page.Content[0].Author.Username)

	draft := validDraft
	draft.Title = "Renamed Tale"
	updated, err := f.stories.Update(ctx, ann, st.ID, draft)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Tale", updated.Title)
	assert.True(t, updated.Published)

	draft.Content = "short"
	_, err = f.stories.Update(ctx, ann, st.ID, draft)
	requireCode(t, err, domainerrors.CodeValidation)

	unpub, err := f.stories.SetPublished(ctx, ann, st.ID, false)
	require.NoError(t, err)
	assert.False(t, unpub.Published)

	require.NoError(t, f.stories.Delete(ctx, ann, st.ID))
	_, err = f.stories.Get(ctx, ann, st.ID)
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestStories_ViewsAndLikes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob := f.register(t, "ann"), f.register(t, "bob")

	st, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)
	_, err = f.stories.SetPublished(ctx, ann, st.ID, true)
	require.NoError(t, err)

	views, err := f.stories.RecordView(ctx, nil, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	_, err = f.stories.SetLike(ctx, nil, st.ID, true)
	requireCode(t, err, domainerrors.CodeUnauthorized)

	likes, err := f.stories.SetLike(ctx, bob, st.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), likes)
	likes, err = f.stories.SetLike(ctx, bob, st.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), likes)

	liked, err := f.stories.Liked(ctx, bob, st.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	likes, err = f.stories.SetLike(ctx, bob, st.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), likes)
}

func (f fixture) publish(t *testing.T, author *domain.UserSummary, title string) domain.Story {
	t.Helper()
	d := validDraft
	d.Title = title
	st, err := f.stories.Create(context.Background(), author, d)
	require.NoError(t, err)
	st, err = f.stories.SetPublished(context.Background(), author, st.ID, true)
	require.NoError(t, err)
	return st
}

func TestStories_Ratings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob, cat := f.register(t, "ann"), f.register(t, "bob"), f.register(t, "cat")
	st := f.publish(t, ann, "Rated Tale")

	_, err := f.stories.Rate(ctx, nil, st.ID, 3)
	requireCode(t, err, domainerrors.CodeUnauthorized)
	_, err = f.stories.Rate(ctx, ann, st.ID, 5)
	requireCode(t, err, domainerrors.CodeForbidden)
	_, err = f.stories.Rate(ctx, bob, st.ID, 5.5)
	requireCode(t, err, domainerrors.CodeValidation)
	_, err = f.stories.Rate(ctx, bob, st.ID, -1)
	requireCode(t, err, domainerrors.CodeValidation)

	sum, err := f.stories.Rate(ctx, bob, st.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{Rating: 5, Ratings: 1}, sum)
	sum, err = f.stories.Rate(ctx, cat, st.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{Rating: 2.5, Ratings: 2}, sum)

	got, err := f.stories.Get(ctx, nil, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Rating)
	assert.Equal(t, int64(2), got.Ratings)

	draft, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)
	_, err = f.stories.Rate(ctx, bob, draft.ID, 4)
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestStories_RatingSortAndTopRated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob, cat := f.register(t, "ann"), f.register(t, "bob"), f.register(t, "cat")

	good := f.publish(t, ann, "Good Tale")
	best := f.publish(t, ann, "Best Tale")
	tied := f.publish(t, ann, "Tied Tale")
	f.publish(t, ann, "Unrated Tale")

	for _, r := range []struct {
		who   *domain.UserSummary
		story domain.ID
		value float64
	}{
		{bob, good.ID, 3}, {bob, best.ID, 5}, {cat, best.ID, 4}, {bob, tied.ID, 3}, {cat, tied.ID, 3},
	} {
		_, err := f.stories.Rate(ctx, r.who, r.story, r.value)
		require.NoError(t, err)
	}

	top, err := f.stories.TopRated(ctx, 0)
	require.NoError(t, err)
	titles := make([]string, len(top))
	for i, s := range top {
		titles[i] = s.Title
	}
	assert.Equal(t, []string{"Best Tale", "Tied Tale", "Good Tale"}, titles, "unrated stories are left out; more ratings win ties")

	top, err = f.stories.TopRated(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, best.ID, top[0].ID)

	page, err := f.stories.List(ctx, domain.ListingQuery{SortKey: domain.SortRating, Direction: domain.Desc})
	require.NoError(t, err)
	require.Len(t, page.Content, 4)
	assert.Equal(t, best.ID, page.Content[0].ID)
	assert.Equal(t, "Unrated Tale", page.Content[3].Title)
}

func TestStories_ByAuthor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob := f.register(t, "ann"), f.register(t, "bob")

	first := f.publish(t, ann, "First Tale")
	second := f.publish(t, ann, "Second Tale")
	_, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)
	f.publish(t, bob, "Bob Tale")

	stories, err := f.stories.ByAuthor(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, stories, 2, "drafts are never listed publicly")
	assert.ElementsMatch(t, []domain.ID{first.ID, second.ID}, []domain.ID{stories[0].ID, stories[1].ID})
	assert.False(t, stories[0].CreatedAt.Before(stories[1].CreatedAt.Time), "newest first")

	_, err = f.stories.ByAuthor(ctx, "404")
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestComments_Flow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann, bob := f.register(t, "ann"), f.register(t, "bob")

	st, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)

	_, err = f.comments.Create(ctx, bob, st.ID, "hidden draft")
	requireCode(t, err, domainerrors.CodeNotFound)

	_, err = f.stories.SetPublished(ctx, ann, st.ID, true)
	require.NoError(t, err)

	_, err = f.comments.Create(ctx, bob, st.ID, "   ")
	requireCode(t, err, domainerrors.CodeValidation)

	first, err := f.comments.Create(ctx, bob, st.ID, " first ")
	require.NoError(t, err)
	assert.Equal(t, "first", first.Content)
	second, err := f.comments.Create(ctx, ann, st.ID, "second")
	require.NoError(t, err)

	list, err := f.comments.List(ctx, nil, st.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	_, err = f.comments.SetLike(ctx, bob, first.ID, true)
	requireCode(t, err, domainerrors.CodeForbidden)

	likes, err := f.comments.SetLike(ctx, ann, first.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), likes)

	list, err = f.comments.List(ctx, ann, st.ID)
	require.NoError(t, err)
	assert.True(t, list[1].Liked)
	list, err = f.comments.List(ctx, bob, st.ID)
	require.NoError(t, err)
	assert.False(t, list[1].Liked)

	_, err = f.comments.Update(ctx, ann, first.ID, "hijack")
	requireCode(t, err, domainerrors.CodeForbidden)
	edited, err := f.comments.Update(ctx, bob, first.ID, "first, edited")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, int64(1), edited.Likes)

	requireCode(t, f.comments.Delete(ctx, ann, first.ID), domainerrors.CodeForbidden)
	require.NoError(t, f.comments.Delete(ctx, bob, first.ID))

	list, err = f.comments.List(ctx, nil, st.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStories_SearchWithoutIndexFallsBackToFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ann := f.register(t, "ann")

	s, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)

	page, err := f.stories.Search(ctx, service.SearchQuery{Text: "tale"})
	require.NoError(t, err)
	assert.Empty(t, page.Content, "drafts are not searchable")

	_, err = f.stories.SetPublished(ctx, ann, s.ID, true)
	require.NoError(t, err)

	page, err = f.stories.Search(ctx, service.SearchQuery{Text: "TALE"})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, s.ID, page.Content[0].ID)

	_, err = f.stories.Search(ctx, service.SearchQuery{Text: "  "})
	requireCode(t, err, domainerrors.CodeValidation)
}

func TestStories_ReindexRestoresPublishedStories(t *testing.T) {
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	index, err := search.Open(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	v := validation.New()
	tokens, err := auth.NewTokenService(make([]byte, auth.KeySize), time.Hour)
	require.NoError(t, err)
	authSvc := service.NewAuthService(s, tokens, v, nil)
	ctx := context.Background()
	res, err := authSvc.Register(ctx, domain.RegisterProfile{Username: "ann", Email: "ann@example.com", Password: "secret123"})
	require.NoError(t, err)

	// Stories written before the index existed.
	plain := service.NewStoryService(s, v, nil)
	published, err := plain.Create(ctx, &res.User, validDraft)
	require.NoError(t, err)
	_, err = plain.SetPublished(ctx, &res.User, published.ID, true)
	require.NoError(t, err)
	_, err = plain.Create(ctx, &res.User, validDraft)
	require.NoError(t, err)

	indexed := service.NewStoryService(s, v, nil, service.WithSearchIndex(index))
	require.NoError(t, indexed.Reindex(ctx))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	page, err := indexed.Search(ctx, service.SearchQuery{Text: "tale"})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, published.ID, page.Content[0].ID)
	assert.Equal(t, "ann", page.Content[0].Author.Username)

	require.NoError(t, indexed.Delete(ctx, &res.User, published.ID))
	count, err = index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func TestEvents_OnlyPublishedActivityIsEmitted(t *testing.T) {
	rec := &recorder{}
	f := setup(t, service.WithEvents(rec))
	ctx := context.Background()
	ann := f.register(t, "ann")
	bob := f.register(t, "bob")

	s, err := f.stories.Create(ctx, ann, validDraft)
	require.NoError(t, err)
	_, err = f.stories.RecordView(ctx, ann, s.ID)
	require.NoError(t, err)
	_, err = f.stories.SetLike(ctx, ann, s.ID, true)
	require.NoError(t, err)
	_, err = f.comments.Create(ctx, ann, s.ID, "note to self")
	require.NoError(t, err)
	assert.Empty(t, rec.types(), "draft activity stays private")

	_, err = f.stories.SetPublished(ctx, ann, s.ID, true)
	require.NoError(t, err)
	_, err = f.stories.RecordView(ctx, bob, s.ID)
	require.NoError(t, err)
	_, err = f.stories.SetLike(ctx, bob, s.ID, true)
	require.NoError(t, err)

	c, err := f.comments.Create(ctx, bob, s.ID, "Lovely")
	require.NoError(t, err)
	_, err = f.comments.SetLike(ctx, ann, c.ID, true)
	require.NoError(t, err)
	_, err = f.comments.Update(ctx, bob, c.ID, "Lovely indeed")
	require.NoError(t, err)
	require.NoError(t, f.comments.Delete(ctx, bob, c.ID))

	_, err = f.stories.SetPublished(ctx, ann, s.ID, true)
	require.NoError(t, err)
	_, err = f.stories.Update(ctx, ann, s.ID, validDraft)
	require.NoError(t, err)
	_, err = f.stories.SetPublished(ctx, ann, s.ID, false)
	require.NoError(t, err)
	require.NoError(t, f.stories.Delete(ctx, ann, s.ID))

	assert.Equal(t, []sse.EventType{
		sse.EventStoryPublished,
		sse.EventStoryViewed,
		sse.EventStoryLiked,
		sse.EventCommentCreated,
		sse.EventCommentLiked,
		sse.EventCommentUpdated,
		sse.EventCommentDeleted,
		sse.EventStoryUpdated,
		sse.EventStoryUnpublished,
	}, rec.types())

	for _, e := range rec.events {
		assert.Equal(t, s.ID, e.StoryID, "event %s", e.Type)
	}
	assert.Equal(t, sse.CounterEventData{ID: s.ID, Count: 2}, rec.events[1].Data, "views include the author's draft view")
	assert.Equal(t, sse.CounterEventData{ID: s.ID, Count: 2}, rec.events[2].Data)
	created, ok := rec.events[3].Data.(sse.CommentEventData)
	require.True(t, ok)
	assert.Equal(t, "Lovely", created.Content)
	assert.Equal(t, "bob", created.Author)
}
