package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/taleforge/taleforge/internal/domain"
)

// CreateUser assigns u an id and stores it. Email and username are unique,
// case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	email := domain.NormalizeEmail(u.Email)
	username := strings.ToLower(strings.TrimSpace(u.Username))

	id, err := s.nextID("user")
	if err != nil {
		return err
	}
	u.ID = id
	u.Email = email
	u.InitTimestamps()

	return s.update(ctx, func(txn *badger.Txn) error {
		if taken, err := exists(txn, emailIndexKey(email)); err != nil || taken {
			return orTaken(err, taken, ErrEmailTaken)
		}
		if taken, err := exists(txn, usernameIndexKey(username)); err != nil || taken {
			return orTaken(err, taken, ErrUsernameTaken)
		}
		if err := setJSON(txn, userKey(id), u); err != nil {
			return err
		}
		if err := txn.Set(emailIndexKey(email), []byte(id)); err != nil {
			return err
		}
		return txn.Set(usernameIndexKey(username), []byte(id))
	})
}

func orTaken(err error, taken bool, sentinel error) error {
	if err != nil {
		return err
	}
	if taken {
		return sentinel
	}
	return nil
}

// User returns the user with id.
func (s *Store) User(ctx context.Context, id domain.ID) (domain.User, error) {
	var u domain.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &u, ErrUserNotFound)
	})
	return u, err
}

// UserByEmail looks a user up by address, case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(emailIndexKey(domain.NormalizeEmail(email)))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get email index: %w", err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(domain.ID(raw)), &u, ErrUserNotFound)
	})
	return u, err
}

// Users returns the users with the given ids. Unknown ids are skipped.
func (s *Store) Users(ctx context.Context, ids []domain.ID) (map[domain.ID]domain.User, error) {
	out := make(map[domain.ID]domain.User, len(ids))
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, ok := out[id]; ok {
				continue
			}
			var u domain.User
			err := getJSON(txn, userKey(id), &u, ErrUserNotFound)
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = u
		}
		return nil
	})
	return out, err
}
