// Package sqlite provides the SQLite-backed implementation of the offline
// punch queue. The file lives next to the agent and survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pontualhq/pontual/internal/agent/queue"
)

const schema = `
CREATE TABLE IF NOT EXISTS punch_queue (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	method       TEXT NOT NULL,
	headers_json TEXT NOT NULL,
	body         BLOB,
	ts           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_punch_queue_ts ON punch_queue(ts);
`

// Store implements queue.Store on a local SQLite file.
type Store struct {
	db       *sql.DB
	maxItems int
}

var _ queue.Store = (*Store)(nil)

// Open opens (creating if needed) the queue database at path. maxItems
// caps the queue; zero or negative means unbounded.
func Open(path string, maxItems int) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	// SQLite allows a single writer; the agent is the only one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init queue schema: %w", err)
	}

	return &Store{db: db, maxItems: maxItems}, nil
}

// Enqueue inserts one item, evicting the oldest rows first when the store
// is at capacity.
func (s *Store) Enqueue(ctx context.Context, item queue.Item) (int, error) {
	if item.ID == "" {
		item.ID = queue.NewItemID(time.Now())
	}

	headers, err := json.Marshal(item.Headers)
	if err != nil {
		return 0, fmt.Errorf("marshal headers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	evicted := 0
	if s.maxItems > 0 {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM punch_queue`).Scan(&count); err != nil {
			return 0, fmt.Errorf("count queue: %w", err)
		}
		if count >= s.maxItems {
			overflow := count - s.maxItems + 1
			res, err := tx.ExecContext(ctx, `
				DELETE FROM punch_queue WHERE id IN (
					SELECT id FROM punch_queue ORDER BY ts, rowid LIMIT ?
				)`, overflow)
			if err != nil {
				return 0, fmt.Errorf("evict oldest: %w", err)
			}
			n, _ := res.RowsAffected()
			evicted = int(n)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO punch_queue (id, url, method, headers_json, body, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.URL, item.Method, string(headers), item.Body, item.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enqueue: %w", err)
	}
	return evicted, nil
}

// ListAll returns every queued item, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]queue.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, method, headers_json, body, ts
		FROM punch_queue
		ORDER BY ts, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	items := make([]queue.Item, 0)
	for rows.Next() {
		var item queue.Item
		var headers string
		if err := rows.Scan(&item.ID, &item.URL, &item.Method, &headers, &item.Body, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(headers), &item.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers for %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes one item. Removing an id that is already gone is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM punch_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove item %s: %w", id, err)
	}
	return nil
}

// Clear deletes all items.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM punch_queue`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Count returns the number of queued items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM punch_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
