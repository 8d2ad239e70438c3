package store

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// OpenReadOnly opens an existing database for inspection. It fails while a
// server holds the database open.
func OpenReadOnly(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithReadOnly(true)
	opts.Logger = nil
	return open(opts, log)
}

// Stats counts the records of each kind.
type Stats struct {
	Users        int
	Stories      int
	Comments     int
	StoryLikes   int
	CommentLikes int
	Ratings      int
}

// Stats walks the key space and counts records and like edges.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.view(ctx, func(txn *badger.Txn) error {
		st.Users = len(scanKeys(txn, prefix("user")))
		st.Stories = len(scanKeys(txn, prefix("story")))
		st.Comments = len(scanKeys(txn, prefix("comment")))
		st.StoryLikes = len(scanKeys(txn, prefix("like", "story")))
		st.CommentLikes = len(scanKeys(txn, prefix("like", "comment")))
		st.Ratings = len(scanKeys(txn, prefix("rating", "story")))
		return nil
	})
	return st, err
}
