package listing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleforge/taleforge/internal/domain"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func story(id string, opts ...func(*domain.Story)) domain.Story {
	s := domain.Story{
		ID:        domain.ID(id),
		Title:     "Story " + id,
		Author:    domain.UserSummary{ID: "1", Username: "ann"},
		Published: true,
	}
	s.CreatedAt = domain.Timestamp{Time: base}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func views(n int64) func(*domain.Story)    { return func(s *domain.Story) { s.Views = n } }
func likes(n int64) func(*domain.Story)    { return func(s *domain.Story) { s.Likes = n } }
func tags(t ...string) func(*domain.Story) { return func(s *domain.Story) { s.Tags = t } }
func draft() func(*domain.Story)           { return func(s *domain.Story) { s.Published = false } }
func title(t string) func(*domain.Story)   { return func(s *domain.Story) { s.Title = t } }
func createdAt(d int) func(*domain.Story) {
	return func(s *domain.Story) { s.CreatedAt.Time = base.AddDate(0, 0, d) }
}
func by(u domain.UserSummary) func(*domain.Story) { return func(s *domain.Story) { s.Author = u } }

func storyIDs(stories []domain.Story) []domain.ID {
	out := make([]domain.ID, len(stories))
	for i, s := range stories {
		out[i] = s.ID
	}
	return out
}

func TestApply_SortByViewsDesc(t *testing.T) {
	stories := []domain.Story{story("1", views(3)), story("2", views(1)), story("3", views(2))}

	res := Apply(stories, domain.ListingQuery{SortKey: domain.SortViews, Direction: domain.Desc}, Options{})

	assert.Equal(t, []domain.ID{"1", "3", "2"}, storyIDs(res.Page.Content))
	assert.Equal(t, []int64{3, 2, 1}, []int64{res.Page.Content[0].Views, res.Page.Content[1].Views, res.Page.Content[2].Views})
}

func TestApply_TiesBrokenByIDAscending(t *testing.T) {
	stories := []domain.Story{
		story("10", likes(5)),
		story("9", likes(5)),
		story("2", likes(7)),
		story("11", likes(5)),
	}

	for _, dir := range []domain.Direction{domain.Asc, domain.Desc} {
		t.Run(string(dir), func(t *testing.T) {
			res := Apply(stories, domain.ListingQuery{SortKey: domain.SortLikes, Direction: dir}, Options{})
			got := storyIDs(res.Page.Content)
			if dir == domain.Desc {
				assert.Equal(t, []domain.ID{"2", "9", "10", "11"}, got)
			} else {
				assert.Equal(t, []domain.ID{"9", "10", "11", "2"}, got)
			}
		})
	}
}

func TestApply_DefaultNewestFirst(t *testing.T) {
	stories := []domain.Story{story("1", createdAt(0)), story("2", createdAt(2)), story("3", createdAt(1))}
	res := Apply(stories, domain.ListingQuery{}, Options{})
	assert.Equal(t, []domain.ID{"2", "3", "1"}, storyIDs(res.Page.Content))
}

func TestApply_DraftsNeverPublic(t *testing.T) {
	stories := []domain.Story{
		story("1", tags("fantasy"), views(100)),
		story("2", draft(), tags("fantasy"), views(200)),
		story("3", draft(), title("Secret fantasy")),
	}

	queries := []domain.ListingQuery{
		{},
		{SortKey: domain.SortViews, Direction: domain.Desc},
		{Tag: "fantasy"},
		{Search: "fantasy"},
		{Search: "secret"},
		{PageSize: 1, Page: 1},
	}
	for i, q := range queries {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			res := Apply(stories, q, Options{})
			for _, s := range res.Page.Content {
				assert.True(t, s.Published, "draft %s leaked", s.ID)
			}
			assert.LessOrEqual(t, res.Page.TotalElements, 1)
		})
	}

	mine := Apply(stories, domain.ListingQuery{}, Options{IncludeUnpublished: true})
	assert.Equal(t, 3, mine.Page.TotalElements)
}

func TestApply_Pagination(t *testing.T) {
	var stories []domain.Story
	for i := 1; i <= 20; i++ {
		stories = append(stories, story(fmt.Sprint(i), views(int64(i%4))))
	}
	q := domain.ListingQuery{PageSize: 9, SortKey: domain.SortViews, Direction: domain.Desc}

	seen := make(map[domain.ID]int)
	for page := 0; page < 3; page++ {
		q.Page = page
		res := Apply(stories, q, Options{})
		assert.Equal(t, 3, res.Page.TotalPages)
		assert.Equal(t, 20, res.Page.TotalElements)
		assert.Equal(t, page, res.Page.Number)
		for _, s := range res.Page.Content {
			seen[s.ID]++
		}
	}
	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "story %s appeared %d times", id, n)
	}

	q.Page = 3
	past := Apply(stories, q, Options{})
	assert.Empty(t, past.Page.Content)
	assert.NotNil(t, past.Page.Content)
	assert.Equal(t, 3, past.Page.TotalPages)
}

func TestApply_EmptyCollection(t *testing.T) {
	res := Apply(nil, domain.ListingQuery{}, Options{})
	assert.Equal(t, 0, res.Page.TotalPages)
	assert.Empty(t, res.Page.Content)
	assert.Empty(t, res.PopularTags)
}

func TestFilter_Search(t *testing.T) {
	ines := domain.UserSummary{ID: "7", Username: "ines", DisplayName: "Inès Ångström"}
	stories := []domain.Story{
		story("1", title("The Dragon Keep")),
		story("2", func(s *domain.Story) { s.Description = "A tale of DRAGONS and dust" }),
		story("3", tags("dragonfire")),
		story("4", by(ines)),
		story("5", title("Unrelated")),
	}

	tests := []struct {
		search string
		want   []domain.ID
	}{
		{search: "dragon", want: []domain.ID{"1", "2", "3"}},
		{search: "  DrAgOn ", want: []domain.ID{"1", "2", "3"}},
		{search: "ångström", want: []domain.ID{"4"}},
		{search: "INÈS", want: []domain.ID{"4"}},
		{search: "zzz", want: []domain.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := Filter(stories, domain.ListingQuery{Search: tt.search}, false)
			assert.Equal(t, tt.want, storyIDs(got))
		})
	}
}

func TestFilter_AuthorNameFallsBackToUsername(t *testing.T) {
	stories := []domain.Story{story("1", by(domain.UserSummary{ID: "3", Username: "quill"}))}
	assert.Len(t, Filter(stories, domain.ListingQuery{Search: "QUILL"}, false), 1)
}

func TestFilter_TagIsExactCaseInsensitive(t *testing.T) {
	stories := []domain.Story{
		story("1", tags("Fantasy")),
		story("2", tags("fantasy-lite")),
		story("3", tags("sci-fi", "fantasy")),
	}
	got := Filter(stories, domain.ListingQuery{Tag: "FANTASY"}, false)
	assert.Equal(t, []domain.ID{"1", "3"}, storyIDs(got))
}

func TestPopularTags(t *testing.T) {
	stories := []domain.Story{
		story("1", tags("horror", "Fantasy")),
		story("2", tags("fantasy", "romance")),
		story("3", tags("romance", "mystery")),
		story("4", tags("sci-fi", "fantasy", "FANTASY")),
	}

	got := PopularTags(stories, 3)
	require.Len(t, got, 3)
	assert.Equal(t, domain.TagFrequency{Tag: "Fantasy", Count: 3}, got[0], "first-seen spelling, counted once per story")
	assert.Equal(t, domain.TagFrequency{Tag: "romance", Count: 2}, got[1])
	assert.Equal(t, domain.TagFrequency{Tag: "horror", Count: 1}, got[2], "ties keep first-seen order")
}

func TestApply_TagFacetUsesFilteredPublishedSet(t *testing.T) {
	stories := []domain.Story{
		story("1", tags("a", "b")),
		story("2", tags("b")),
		story("3", draft(), tags("c", "c2")),
		story("4", tags("a"), title("other")),
	}

	res := Apply(stories, domain.ListingQuery{Tag: "b", PageSize: 1}, Options{TopTags: 5})
	assert.Equal(t, []domain.TagFrequency{{Tag: "b", Count: 2}, {Tag: "a", Count: 1}}, res.PopularTags)
	assert.Len(t, res.Page.Content, 1, "facet spans all pages, content only one")
}

func TestApply_OwnerFacetCountsPublishedOnly(t *testing.T) {
	stories := []domain.Story{
		story("1", tags("a")),
		story("2", draft(), tags("secret", "a")),
	}

	res := Apply(stories, domain.ListingQuery{}, Options{IncludeUnpublished: true})
	assert.Len(t, res.Page.Content, 2)
	assert.Equal(t, []domain.TagFrequency{{Tag: "a", Count: 1}}, res.PopularTags)
}

func TestApply_SortByRating(t *testing.T) {
	rated := func(r float64) func(*domain.Story) { return func(s *domain.Story) { s.Rating = r } }
	stories := []domain.Story{story("1", rated(3)), story("2"), story("3", rated(4.5)), story("4", rated(3))}

	res := Apply(stories, domain.ListingQuery{SortKey: domain.SortRating, Direction: domain.Desc}, Options{})
	assert.Equal(t, []domain.ID{"3", "1", "4", "2"}, storyIDs(res.Page.Content))
}
