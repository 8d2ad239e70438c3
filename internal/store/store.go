// Package store persists the reference server's users, stories, comments and like
// edges in Badger.
//
// Every mutation that touches more than one key (an entity and its indexes, a like
// edge and its counter, a story and everything hanging off it) runs in a single
// transaction, retried when Badger reports a conflict. Counters therefore never
// drift from their edges, and likes are idempotent.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/logger"
)

// maxTxnAttempts bounds conflict retries of a single mutation.
const maxTxnAttempts = 100

// sequenceBandwidth is how many ids a sequence leases from disk at a time.
const sequenceBandwidth = 100

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

// Open opens (or creates) the database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, log)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory(log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, log)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	s := &Store{
		db:     db,
		logger: logger.OrDiscard(log),
		seqs:   make(map[string]*badger.Sequence),
	}
	s.logger.Info("badger database opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return s, nil
}

// Close releases the id sequences and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s sequence: %w", name, err))
		}
	}
	s.seqs = nil
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// nextID returns the next numeric id of the named sequence, starting at 1.
func (s *Store) nextID(name string) (domain.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqs == nil {
		return "", ErrClosed
	}

	seq, ok := s.seqs[name]
	if !ok {
		var err error
		seq, err = s.db.GetSequence(sequenceKey(name), sequenceBandwidth)
		if err != nil {
			return "", fmt.Errorf("open %s sequence: %w", name, err)
		}
		s.seqs[name] = seq
	}

	n, err := seq.Next()
	if err != nil {
		return "", fmt.Errorf("next %s id: %w", name, err)
	}
	return domain.ID(strconv.FormatUint(n+1, 10)), nil
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	s.logger.Warn("transaction gave up after conflicts", "attempts", maxTxnAttempts)
	return err
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// Ping reports whether the database still answers reads.
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.view(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(sequenceKey("user"))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// getJSON decodes the value at key into dest, mapping a missing key to notFound.
func getJSON(txn *badger.Txn, key []byte, dest any, notFound error) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dest); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

// scanKeys returns copies of every key under prefix.
func scanKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// deletePrefix removes every key under prefix.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	for _, k := range scanKeys(txn, prefix) {
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

// lastSegment returns the part of key after its final ':'.
func lastSegment(key []byte) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return string(key[i+1:])
		}
	}
	return string(key)
}
