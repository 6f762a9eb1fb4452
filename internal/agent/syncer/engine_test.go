package syncer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontualhq/pontual/internal/agent/queue"
	"github.com/pontualhq/pontual/internal/agent/queue/sqlite"
)

func newTestStore(t *testing.T) queue.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "queue.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func enqueue(t *testing.T, store queue.Store, url string, ts int64) queue.Item {
	t.Helper()
	item := queue.Item{
		ID:        fmt.Sprintf("%d-test", ts),
		URL:       url,
		Method:    http.MethodPost,
		Headers:   map[string]string{"Authorization": "Bearer token"},
		Body:      []byte(fmt.Sprintf(`{"ts":%d}`, ts)),
		Timestamp: ts,
	}
	_, err := store.Enqueue(context.Background(), item)
	require.NoError(t, err)
	return item
}

func alwaysOnline() bool { return true }

// deadEndpoint returns a URL that refuses connections: the listener is
// closed immediately, so requests fail at the network level.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestDrain_RefusedWhileOffline(t *testing.T) {
	store := newTestStore(t)
	enqueue(t, store, "http://127.0.0.1:0", 1)

	engine := NewEngine(store, func() bool { return false }, nil)

	_, err := engine.Drain(context.Background())
	assert.ErrorIs(t, err, ErrOffline)

	// Nothing was attempted or evicted.
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDrain_DeliversInInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	enqueue(t, store, server.URL, 1)
	enqueue(t, store, server.URL, 2)
	enqueue(t, store, server.URL, 3)

	engine := NewEngine(store, alwaysOnline, nil)

	res, err := engine.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Processed: 3, Failed: 0, Remaining: 0}, res)
	assert.Equal(t, []string{`{"ts":1}`, `{"ts":2}`, `{"ts":3}`}, bodies)
}

func TestDrain_ShortCircuitsOnNetworkFailure(t *testing.T) {
	store := newTestStore(t)

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	// First item points at a dead endpoint; the rest would succeed but must
	// not be attempted in this cycle.
	enqueue(t, store, deadEndpoint(t), 1)
	enqueue(t, store, server.URL, 2)
	enqueue(t, store, server.URL, 3)

	engine := NewEngine(store, alwaysOnline, &http.Client{Timeout: 2 * time.Second})

	res, err := engine.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Processed: 0, Failed: 1, Remaining: 3}, res)
	assert.Zero(t, requests, "items after the failed one must wait for the next cycle")

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDrain_ApplicationRejectionDrainsTheItem(t *testing.T) {
	store := newTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	enqueue(t, store, server.URL, 1)

	engine := NewEngine(store, alwaysOnline, nil)

	res, err := engine.Drain(context.Background())
	require.NoError(t, err)

	// A delivered-but-rejected punch counts as processed and is dropped:
	// replaying an explicit rejection cannot succeed.
	assert.Equal(t, Result{Processed: 1, Failed: 0, Remaining: 0}, res)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDrain_ConcurrentDrainsCoalesce(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	const items = 4
	for i := range items {
		enqueue(t, store, server.URL, int64(i+1))
	}

	engine := NewEngine(store, alwaysOnline, nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Drain(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var coalesced, ran int
	for err := range results {
		switch {
		case err == nil:
			ran++
		case assert.ErrorIs(t, err, ErrDrainInProgress):
			coalesced++
		}
	}

	assert.Equal(t, 1, ran, "exactly one drain cycle must run")
	assert.Equal(t, 1, coalesced, "the losing request is coalesced, not queued")
	assert.Equal(t, items, requests, "each item attempted exactly once overall")
}

func TestDrain_ItemsEnqueuedMidCycleWaitForNextCycle(t *testing.T) {
	store := newTestStore(t)

	release := make(chan struct{})
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { <-release })
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	enqueue(t, store, server.URL, 1)

	engine := NewEngine(store, alwaysOnline, nil)

	done := make(chan Result, 1)
	go func() {
		res, err := engine.Drain(context.Background())
		require.NoError(t, err)
		done <- res
	}()

	// Wait until the cycle is in flight, then enqueue behind the snapshot.
	require.Eventually(t, engine.Draining, time.Second, time.Millisecond)
	enqueue(t, store, server.URL, 2)
	close(release)

	res := <-done
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Remaining, "mid-cycle arrival stays queued for the next cycle")
}
