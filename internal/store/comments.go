package store

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/taleforge/taleforge/internal/domain"
)

// Comment is a stored comment.
type Comment struct {
	ID       domain.ID `json:"id"`
	StoryID  domain.ID `json:"storyId"`
	AuthorID domain.ID `json:"authorId"`
	Content  string    `json:"content"`
	Likes    int64     `json:"likes"`
	Edited   bool      `json:"edited"`
	domain.Timestamps
}

// ToDomain joins the record with its author and the viewer's like state.
func (c Comment) ToDomain(author domain.UserSummary, liked bool) domain.Comment {
	return domain.Comment{
		ID:         c.ID,
		StoryID:    c.StoryID,
		Content:    c.Content,
		Author:     author,
		Likes:      c.Likes,
		Liked:      liked,
		Edited:     c.Edited,
		Timestamps: c.Timestamps,
	}
}

// CreateComment assigns c an id and stores it under its story, which must exist.
func (s *Store) CreateComment(ctx context.Context, c *Comment) error {
	id, err := s.nextID("comment")
	if err != nil {
		return err
	}
	c.ID = id
	c.InitTimestamps()

	return s.update(ctx, func(txn *badger.Txn) error {
		ok, err := exists(txn, storyKey(c.StoryID))
		if err != nil {
			return err
		}
		if !ok {
			return ErrStoryNotFound
		}
		if err := setJSON(txn, commentKey(id), c); err != nil {
			return err
		}
		return txn.Set(storyCommentKey(c.StoryID, id), nil)
	})
}

// Comment returns the comment with id.
func (s *Store) Comment(ctx context.Context, id domain.ID) (Comment, error) {
	var c Comment
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, commentKey(id), &c, ErrCommentNotFound)
	})
	return c, err
}

// UpdateComment applies fn to the stored comment and saves it.
func (s *Store) UpdateComment(ctx context.Context, id domain.ID, fn func(*Comment) error) (Comment, error) {
	var c Comment
	err := s.update(ctx, func(txn *badger.Txn) error {
		c = Comment{}
		if err := getJSON(txn, commentKey(id), &c, ErrCommentNotFound); err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.Touch()
		return setJSON(txn, commentKey(id), &c)
	})
	return c, err
}

// DeleteComment removes a comment and its likes.
func (s *Store) DeleteComment(ctx context.Context, id domain.ID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var c Comment
		if err := getJSON(txn, commentKey(id), &c, ErrCommentNotFound); err != nil {
			return err
		}
		if err := deletePrefix(txn, prefix("like", "comment", id.String())); err != nil {
			return err
		}
		if err := txn.Delete(storyCommentKey(c.StoryID, id)); err != nil {
			return err
		}
		return txn.Delete(commentKey(id))
	})
}

// CommentsByStory returns the comments of a story in id order.
func (s *Store) CommentsByStory(ctx context.Context, storyID domain.ID) ([]Comment, error) {
	var out []Comment
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, k := range scanKeys(txn, prefix("idx", "comment", "story", storyID.String())) {
			var c Comment
			if err := getJSON(txn, commentKey(domain.ID(lastSegment(k))), &c, ErrCommentNotFound); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// SetCommentLike adds or removes user's like on a comment and returns the count.
func (s *Store) SetCommentLike(ctx context.Context, commentID, userID domain.ID, liked bool) (int64, error) {
	var likes int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		var c Comment
		if err := getJSON(txn, commentKey(commentID), &c, ErrCommentNotFound); err != nil {
			return err
		}
		changed, err := setEdge(txn, commentLikeKey(commentID, userID), liked)
		if err != nil {
			return err
		}
		likes = c.Likes
		if !changed {
			return nil
		}
		c.Likes = adjust(c.Likes, liked)
		likes = c.Likes
		return setJSON(txn, commentKey(commentID), &c)
	})
	return likes, err
}

// LikedComments returns the subset of ids that user likes.
func (s *Store) LikedComments(ctx context.Context, userID domain.ID, ids []domain.ID) (map[domain.ID]bool, error) {
	out := make(map[domain.ID]bool)
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, id := range ids {
			ok, err := exists(txn, commentLikeKey(id, userID))
			if err != nil {
				return err
			}
			if ok {
				out[id] = true
			}
		}
		return nil
	})
	return out, err
}
