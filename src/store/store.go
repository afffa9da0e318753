// Package store persists arbitrary JSON blobs under scoped keys. It
// performs no scoping logic itself: callers hand it keys derived by the
// scope package and the store treats them as opaque.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("store: key not found")

type Store struct {
	db *sql.DB
}

// New wraps an already-opened database handle. The store does not own
// the handle; the caller closes it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Put upserts the JSON encoding of value under key.
func (s *Store) Put(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshaling payload for key %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO scoped_blobs (key, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`, key, string(payload))
	if err != nil {
		return fmt.Errorf("error writing blob for key %s: %w", key, err)
	}
	return nil
}

// Get unmarshals the blob stored under key into dest. Returns ErrNotFound
// when the key has never been written.
func (s *Store) Get(key string, dest any) error {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM scoped_blobs WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error reading blob for key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return fmt.Errorf("error unmarshaling blob for key %s: %w", key, err)
	}
	return nil
}

// Delete removes a single key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM scoped_blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("error deleting blob for key %s: %w", key, err)
	}
	return nil
}

// Keys lists all stored keys sharing a prefix, ordered for stable output.
func (s *Store) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM scoped_blobs WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("error listing keys with prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("error scanning key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating key rows: %w", err)
	}
	return keys, nil
}

// DeleteByPrefix removes every key sharing a prefix, for tearing down a
// whole namespace (e.g. all datasets of a deleted house).
func (s *Store) DeleteByPrefix(prefix string) error {
	if _, err := s.db.Exec(`DELETE FROM scoped_blobs WHERE key LIKE ? ESCAPE '\'`, likePattern(prefix)); err != nil {
		return fmt.Errorf("error deleting blobs with prefix %s: %w", prefix, err)
	}
	return nil
}

// likePattern escapes LIKE metacharacters in the prefix so stored keys
// containing '%' or '_' cannot widen the match.
func likePattern(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+2)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	return string(escaped) + "%"
}
