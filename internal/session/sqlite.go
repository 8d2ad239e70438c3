package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteCredentials persists the credential in a single-row SQLite table.
type SQLiteCredentials struct {
	db *sql.DB
}

// OpenSQLiteCredentials opens (or creates) the credential database at path.
func OpenSQLiteCredentials(path string) (*SQLiteCredentials, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	// The token is a secret; keep the file private to the user.
	_ = os.Chmod(path, 0o600)

	return &SQLiteCredentials{db: db}, nil
}

// Close closes the database.
func (s *SQLiteCredentials) Close() error {
	return s.db.Close()
}

// Load returns the stored credential, if any.
func (s *SQLiteCredentials) Load(ctx context.Context) (Credential, bool, error) {
	var (
		cred     Credential
		userJSON sql.NullString
		savedAt  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_json, saved_at FROM credential WHERE id = 1`,
	).Scan(&cred.Token, &userJSON, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("load credential: %w", err)
	}

	if userJSON.Valid && userJSON.String != "" {
		if err := json.Unmarshal([]byte(userJSON.String), &cred.User); err != nil {
			return Credential{}, false, fmt.Errorf("decode stored user: %w", err)
		}
	}
	if cred.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return Credential{}, false, fmt.Errorf("parse saved_at: %w", err)
	}
	return cred, true, nil
}

// Save stores cred, replacing any previous credential.
func (s *SQLiteCredentials) Save(ctx context.Context, cred Credential) error {
	userJSON, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credential (id, token, user_json, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_json = excluded.user_json,
			saved_at = excluded.saved_at`,
		cred.Token,
		string(userJSON),
		cred.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential.
func (s *SQLiteCredentials) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential`); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
