package auth

import (
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore persists the session blob in a local sqlite database, keyed by a
// profile id. It backs CLI/daemon deployments where no browser cookie exists.
type SQLiteStore struct {
	db *sql.DB
	id string
}

// NewSQLiteStore creates a store for the given profile id ("default" when empty).
func NewSQLiteStore(db *sql.DB, id string) *SQLiteStore {
	if id == "" {
		id = "default"
	}
	return &SQLiteStore{db: db, id: id}
}

// Read loads the stored session, or (nil, nil) when none exists.
func (s *SQLiteStore) Read() (*Session, error) {
	row := s.db.QueryRow(
		"SELECT access_token, refresh_token, scope, expires_at FROM sessions WHERE id = ?", s.id)

	var sess Session
	err := row.Scan(&sess.AccessToken, &sess.RefreshToken, &sess.Scope, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

// Write upserts the session for this profile.
func (s *SQLiteStore) Write(sess *Session) error {
	_, err := s.db.Exec(`INSERT INTO sessions (id, access_token, refresh_token, scope, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		s.id, sess.AccessToken, sess.RefreshToken, sess.Scope, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", s.id); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
