package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionStorage is the key/value record set of one browser session.
type SessionStorage struct {
	db        *DB
	sessionID string
	now       func() time.Time
}

// SessionStorage returns the storage scoped to sessionID.
func (d *DB) SessionStorage(sessionID string) *SessionStorage {
	return &SessionStorage{db: d, sessionID: sessionID, now: time.Now}
}

// SetItem stores value under key.
func (s *SessionStorage) SetItem(key, value string) error {
	_, err := s.db.sql.Exec(`
		INSERT INTO session_storage (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.sessionID, key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// GetItem returns the value under key and whether it exists.
func (s *SessionStorage) GetItem(key string) (string, bool, error) {
	var value string
	err := s.db.sql.QueryRow(
		`SELECT value FROM session_storage WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get %s: %w", key, err)
	}
	return value, true, nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *SessionStorage) RemoveItem(key string) error {
	_, err := s.db.sql.Exec(
		`DELETE FROM session_storage WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("store: remove %s: %w", key, err)
	}
	return nil
}

// PruneSessions deletes records not written for longer than maxAge.
func (d *DB) PruneSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := d.sql.ExecContext(ctx, `DELETE FROM session_storage WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune sessions: %w", err)
	}
	return res.RowsAffected()
}
