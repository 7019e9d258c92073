// Package cache persists computed responses keyed by (op, requestHash) in
// SQLite. Reads happen on the request path; writes arrive through the event
// bus and are applied by Writer.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TopicCompleted is the bus topic carrying Entry payloads to persist.
const TopicCompleted = "computation.completed"

// Entry is one response body ready to be stored.
type Entry struct {
	Op          string
	RequestHash string
	Body        []byte
}

// Store is the SQLite-backed response cache.
type Store struct {
	db *sql.DB
}

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the cached body for (op, hash). A hit bumps the hit counter.
func (s *Store) Get(ctx context.Context, op, hash string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM response_cache WHERE op = ? AND request_hash = ?`, op, hash,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache.Get %s/%s: %w", op, hash, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE response_cache
		    SET hits = hits + 1, last_hit_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		  WHERE op = ? AND request_hash = ?`, op, hash,
	); err != nil {
		return nil, false, fmt.Errorf("cache.Get %s/%s: bump hits: %w", op, hash, err)
	}
	return body, true, nil
}

// Put stores e unless the key is already present; the first body wins,
// which is safe because equal hashes imply equal responses.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if e.Op == "" || e.RequestHash == "" {
		return fmt.Errorf("cache.Put: op and request hash are required")
	}
	// v7 ids sort by insertion time, which keeps the primary key index append-only.
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("cache.Put: new id: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO response_cache (id, op, request_hash, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT (op, request_hash) DO NOTHING`,
		id.String(), e.Op, e.RequestHash, e.Body,
	)
	if err != nil {
		return fmt.Errorf("cache.Put %s/%s: %w", e.Op, e.RequestHash, err)
	}
	return nil
}

// Stats summarizes one op's cache rows.
type Stats struct {
	Entries int64
	Hits    int64
}

// StatsFor returns the row and hit counts for op.
func (s *Store) StatsFor(ctx context.Context, op string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM response_cache WHERE op = ?`, op,
	).Scan(&st.Entries, &st.Hits)
	if err != nil {
		return Stats{}, fmt.Errorf("cache.StatsFor %s: %w", op, err)
	}
	return st, nil
}
