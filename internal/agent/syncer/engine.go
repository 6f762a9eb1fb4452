// Package syncer replays the offline punch queue against the server.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pontualhq/pontual/internal/agent/queue"
)

// Drain refusal reasons. Callers treat both as no-ops, not failures.
var (
	// ErrOffline means the connectivity monitor reports the server as
	// unreachable and the cycle was refused without attempting requests.
	ErrOffline = errors.New("offline, drain refused")
	// ErrDrainInProgress means another drain cycle is running; the request
	// is coalesced into it.
	ErrDrainInProgress = errors.New("drain already in progress")
)

// Result summarizes one drain cycle.
type Result struct {
	// Processed counts items that obtained a response and were evicted.
	Processed int `json:"processed"`
	// Failed counts items that stayed queued after a network-level failure.
	Failed int `json:"failed"`
	// Remaining is the store size after the cycle.
	Remaining int `json:"remaining"`
}

// Engine drains the queue store one item at a time. At most one drain
// cycle runs at any moment; concurrent requests are coalesced.
type Engine struct {
	store  queue.Store
	online func() bool
	client *http.Client

	draining atomic.Bool
}

// NewEngine creates a sync engine. online is the connectivity monitor's
// current-state accessor; client is the transport used for replay (its
// timeout, if any, is the only per-request deadline).
func NewEngine(store queue.Store, online func() bool, client *http.Client) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{store: store, online: online, client: client}
}

// Drain executes one drain cycle.
//
// The queue is snapshotted at cycle start; items enqueued while draining
// wait for the next cycle. Each snapshot item is attempted exactly once,
// in insertion order. A delivered response of any status counts the item
// as processed and evicts it: a rejected punch would be rejected again,
// so retrying cannot change the outcome. A network-level failure keeps
// the item queued and short-circuits the rest of the snapshot, since the
// connection has most likely just dropped again.
func (e *Engine) Drain(ctx context.Context) (Result, error) {
	if !e.online() {
		return Result{}, ErrOffline
	}
	if !e.draining.CompareAndSwap(false, true) {
		return Result{}, ErrDrainInProgress
	}
	defer e.draining.Store(false)

	snapshot, err := e.store.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	start := time.Now()

	for _, item := range snapshot {
		delivered, err := e.deliver(ctx, item)
		if !delivered {
			slog.Warn("punch delivery failed, stopping cycle",
				"item_id", item.ID,
				"error", err,
			)
			res.Failed++
			break
		}

		if err != nil {
			// Application-level rejection: delivered, dropped, not retried.
			slog.Info("queued punch rejected by server", "item_id", item.ID, "error", err)
		}

		if err := e.store.Remove(ctx, item.ID); err != nil {
			slog.Error("failed to evict delivered item", "item_id", item.ID, "error", err)
		}
		res.Processed++
	}

	remaining, err := e.store.Count(ctx)
	if err != nil {
		slog.Error("failed to count queue after drain", "error", err)
		remaining = len(snapshot) - res.Processed
	}
	res.Remaining = remaining

	slog.Info("drain cycle finished",
		"processed", res.Processed,
		"failed", res.Failed,
		"remaining", res.Remaining,
		"duration", time.Since(start),
	)

	return res, nil
}

// Draining reports whether a cycle is currently running.
func (e *Engine) Draining() bool {
	return e.draining.Load()
}

// deliver issues the item's request once. delivered is false only for
// network-level failures (no response obtained). A non-nil err with
// delivered true is an application-level rejection.
func (e *Engine) deliver(ctx context.Context, item queue.Item) (delivered bool, err error) {
	req, err := http.NewRequestWithContext(ctx, item.Method, item.URL, bytes.NewReader(item.Body))
	if err != nil {
		// Malformed stored request; treat as delivered so it drains rather
		// than wedging the queue forever.
		return true, err
	}
	for k, v := range item.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return true, &RejectionError{StatusCode: resp.StatusCode}
	}
	return true, nil
}

// RejectionError records a delivered-but-rejected replay.
type RejectionError struct {
	StatusCode int
}

func (e *RejectionError) Error() string {
	return http.StatusText(e.StatusCode)
}
