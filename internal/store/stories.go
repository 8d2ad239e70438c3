package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"

	"github.com/taleforge/taleforge/internal/domain"
)

// Story is a stored story. The author is kept by id and resolved when the story is
// served, so renamed users show up under their current name.
type Story struct {
	ID          domain.ID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	AuthorID    domain.ID `json:"authorId"`
	Tags        []string  `json:"tags"`
	Published   bool      `json:"published"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	// RatingSum and RatingCount aggregate one rating per reader.
	RatingSum   float64 `json:"ratingSum"`
	RatingCount int64   `json:"ratingCount"`
	domain.Timestamps
}

// Rating returns the mean rating, 0 when nobody has rated the story.
func (s Story) Rating() float64 {
	if s.RatingCount == 0 {
		return 0
	}
	return math.Round(s.RatingSum/float64(s.RatingCount)*100) / 100
}

// ToDomain joins the record with its author.
func (s Story) ToDomain(author domain.UserSummary) domain.Story {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Story{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Content:     s.Content,
		Author:      author,
		Tags:        tags,
		Published:   s.Published,
		Views:       s.Views,
		Likes:       s.Likes,
		Rating:      s.Rating(),
		Ratings:     s.RatingCount,
		Timestamps:  s.Timestamps,
	}
}

// CreateStory assigns st an id and stores it.
func (s *Store) CreateStory(ctx context.Context, st *Story) error {
	id, err := s.nextID("story")
	if err != nil {
		return err
	}
	st.ID = id
	st.InitTimestamps()

	return s.update(ctx, func(txn *badger.Txn) error {
		if err := setJSON(txn, storyKey(id), st); err != nil {
			return err
		}
		return txn.Set(authorIndexKey(st.AuthorID, id), nil)
	})
}

// Story returns the story with id.
func (s *Store) Story(ctx context.Context, id domain.ID) (Story, error) {
	var st Story
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, storyKey(id), &st, ErrStoryNotFound)
	})
	return st, err
}

// UpdateStory applies fn to the stored story and saves the result. fn may run more
// than once if the transaction conflicts; it always receives a fresh copy.
func (s *Store) UpdateStory(ctx context.Context, id domain.ID, fn func(*Story) error) (Story, error) {
	var st Story
	err := s.update(ctx, func(txn *badger.Txn) error {
		st = Story{}
		if err := getJSON(txn, storyKey(id), &st, ErrStoryNotFound); err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		st.Touch()
		return setJSON(txn, storyKey(id), &st)
	})
	return st, err
}

// DeleteStory removes a story with its likes, comments and comment likes.
func (s *Store) DeleteStory(ctx context.Context, id domain.ID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var st Story
		if err := getJSON(txn, storyKey(id), &st, ErrStoryNotFound); err != nil {
			return err
		}

		for _, k := range scanKeys(txn, prefix("idx", "comment", "story", id.String())) {
			commentID := domain.ID(lastSegment(k))
			if err := deletePrefix(txn, prefix("like", "comment", commentID.String())); err != nil {
				return err
			}
			if err := txn.Delete(commentKey(commentID)); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		if err := deletePrefix(txn, prefix("like", "story", id.String())); err != nil {
			return err
		}
		if err := deletePrefix(txn, prefix("rating", "story", id.String())); err != nil {
			return err
		}
		if err := txn.Delete(authorIndexKey(st.AuthorID, id)); err != nil {
			return err
		}
		return txn.Delete(storyKey(id))
	})
}

// Stories returns every stored story, drafts included, in key order.
func (s *Store) Stories(ctx context.Context) ([]Story, error) {
	var out []Story
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix("story")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var st Story
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &st)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, st)
		}
		return nil
	})
	return out, err
}

// StoriesByAuthor returns the stories written by author, drafts included.
func (s *Store) StoriesByAuthor(ctx context.Context, author domain.ID) ([]Story, error) {
	var out []Story
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, k := range scanKeys(txn, prefix("idx", "story", "author", author.String())) {
			var st Story
			if err := getJSON(txn, storyKey(domain.ID(lastSegment(k))), &st, ErrStoryNotFound); err != nil {
				return err
			}
			out = append(out, st)
		}
		return nil
	})
	return out, err
}

// AddView increments the story's view counter and returns the new value. Views do
// not count as edits, so updatedAt is left alone.
func (s *Store) AddView(ctx context.Context, id domain.ID) (int64, error) {
	var views int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		var st Story
		if err := getJSON(txn, storyKey(id), &st, ErrStoryNotFound); err != nil {
			return err
		}
		st.Views++
		views = st.Views
		return setJSON(txn, storyKey(id), &st)
	})
	return views, err
}

// SetStoryLike adds or removes user's like on a story and returns the like count.
// Repeating the same call changes nothing.
func (s *Store) SetStoryLike(ctx context.Context, storyID, userID domain.ID, liked bool) (int64, error) {
	var likes int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		var st Story
		if err := getJSON(txn, storyKey(storyID), &st, ErrStoryNotFound); err != nil {
			return err
		}
		changed, err := setEdge(txn, storyLikeKey(storyID, userID), liked)
		if err != nil {
			return err
		}
		likes = st.Likes
		if !changed {
			return nil
		}
		st.Likes = adjust(st.Likes, liked)
		likes = st.Likes
		return setJSON(txn, storyKey(storyID), &st)
	})
	return likes, err
}

// StoryLiked reports whether user likes the story.
func (s *Store) StoryLiked(ctx context.Context, storyID, userID domain.ID) (bool, error) {
	var liked bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		liked, err = exists(txn, storyLikeKey(storyID, userID))
		return err
	})
	return liked, err
}

// RateStory records user's rating of a story, replacing any earlier rating by the
// same user, and returns the story's new mean rating and rating count.
func (s *Store) RateStory(ctx context.Context, storyID, userID domain.ID, value float64) (domain.RatingSummary, error) {
	var sum domain.RatingSummary
	err := s.update(ctx, func(txn *badger.Txn) error {
		var st Story
		if err := getJSON(txn, storyKey(storyID), &st, ErrStoryNotFound); err != nil {
			return err
		}

		var prev float64
		err := getJSON(txn, storyRatingKey(storyID, userID), &prev, errNoRating)
		switch {
		case errors.Is(err, errNoRating):
			st.RatingCount++
		case err != nil:
			return err
		default:
			st.RatingSum -= prev
		}
		st.RatingSum = max(st.RatingSum+value, 0)

		if err := setJSON(txn, storyRatingKey(storyID, userID), value); err != nil {
			return err
		}
		sum = domain.RatingSummary{Rating: st.Rating(), Ratings: st.RatingCount}
		return setJSON(txn, storyKey(storyID), &st)
	})
	return sum, err
}

// StoryRating returns user's rating of a story and whether one exists.
func (s *Store) StoryRating(ctx context.Context, storyID, userID domain.ID) (float64, bool, error) {
	var value float64
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, storyRatingKey(storyID, userID), &value, errNoRating)
	})
	if errors.Is(err, errNoRating) {
		return 0, false, nil
	}
	return value, err == nil, err
}

// setEdge makes the like edge at k present or absent and reports whether it changed.
func setEdge(txn *badger.Txn, k []byte, present bool) (bool, error) {
	has, err := exists(txn, k)
	if err != nil || has == present {
		return false, err
	}
	if present {
		return true, txn.Set(k, nil)
	}
	return true, txn.Delete(k)
}

// adjust moves a counter one step, never below zero.
func adjust(n int64, up bool) int64 {
	if up {
		return n + 1
	}
	return max(n-1, 0)
}
