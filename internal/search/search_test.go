package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleforge/taleforge/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func story(id, title string, day int, opts ...func(*domain.Story)) *domain.Story {
	s := &domain.Story{
		ID:          domain.ID(id),
		Title:       title,
		Description: "A short tale.",
		Content:     "Once upon a time.",
		Author:      domain.UserSummary{ID: "1", Username: "ann", DisplayName: "Ann Quill"},
		Published:   true,
	}
	s.CreatedAt = domain.Timestamp{Time: base.AddDate(0, 0, day)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func seed(t *testing.T, index *Index) {
	t.Helper()
	docs := []*Document{
		StoryDocument(story("1", "The Lantern Keeper", 0)),
		StoryDocument(story("2", "Dragons of the Deep", 1, func(s *domain.Story) {
			s.Tags = []string{"Sea", "slow-burn"}
			s.Author = domain.UserSummary{ID: "2", Username: "bob"}
		})),
		StoryDocument(story("3", "Harbour Lights", 2, func(s *domain.Story) {
			s.Content = "The lantern swung above the harbour all night."
			s.Author = domain.UserSummary{ID: "2", Username: "bob"}
		})),
	}
	require.NoError(t, index.Replace(docs))
}

func ids(res *Result) []domain.ID {
	out := make([]domain.ID, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.ID
	}
	return out
}

func TestOpen_InMemory(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	index, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.Put(StoryDocument(story("1", "The Lantern Keeper", 0))))
	require.NoError(t, index.Close())

	index, err = Open(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearch_TitleMatchRanksFirst(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Query: "lantern"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)
	assert.Equal(t, []domain.ID{"1", "3"}, ids(res), "title beats story text")
}

func TestSearch_Matching(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	tests := []struct {
		name  string
		query string
		want  domain.ID
	}{
		{"stemmed", "dragon", "2"},
		{"typo", "lantrn", "1"},
		{"prefix", "harb", "3"},
		{"author display name", "Quill", "1"},
		{"tag ignores case", "SEA", "2"},
		{"compound tag", "slow-burn", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := index.Search(context.Background(), Params{Query: tt.query})
			require.NoError(t, err)
			require.NotEmpty(t, res.Hits)
			assert.Equal(t, tt.want, res.Hits[0].ID)
		})
	}
}

func TestSearch_EmptyQueryNewestFirst(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Equal(t, []domain.ID{"3", "2"}, ids(res))

	res, err = index.Search(context.Background(), Params{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"1"}, ids(res))
}

func TestSearch_Highlight(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Query: "keeper", Highlight: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Contains(t, res.Hits[0].Highlight, "<mark>Keeper</mark>")
}

func TestRemove(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Remove("2"))
	require.NoError(t, index.Remove("missing"))

	res, err := index.Search(context.Background(), Params{Query: "dragon"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
