// Package queue defines the durable offline punch queue.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item is one deferred HTTP request waiting for replay.
// Items are immutable after creation: they are either delivered and
// deleted, or retained in place for a later cycle.
type Item struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      []byte            `json:"body"`
	Timestamp int64             `json:"timestamp"` // enqueue time, epoch millis
}

// Store is the durable queue. Only the agent process mutates it; foreground
// portals observe snapshots over the control channel.
type Store interface {
	// Enqueue inserts one item. Duplicate content is acceptable. When the
	// store is at capacity the oldest items are evicted first; the count of
	// evicted items is returned so callers can surface a storage warning.
	Enqueue(ctx context.Context, item Item) (evicted int, err error)
	// ListAll returns every item in insertion order (oldest first).
	ListAll(ctx context.Context) ([]Item, error)
	// Remove deletes one item by id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error
	// Clear deletes all items.
	Clear(ctx context.Context) error
	// Count returns the number of queued items.
	Count(ctx context.Context) (int, error)
	Close() error
}

// NewItemID generates a unique item id: enqueue time in millis plus a
// random suffix so concurrent enqueues from multiple portals never collide.
func NewItemID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
}
