package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontualhq/pontual/internal/agent/control"
	"github.com/pontualhq/pontual/internal/config"
)

type testHarness struct {
	agent   *Agent
	conn    *websocket.Conn
	punches *atomic.Int64
}

// newHarness starts a full agent (store, monitor, engine, hub) with the
// probe loop disabled so tests drive connectivity through SetOnline.
func newHarness(t *testing.T) *testHarness {
	t.Helper()

	var punches atomic.Int64
	punchServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		punches.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(punchServer.Close)

	a, err := New(config.AgentConfig{
		StorePath:     filepath.Join(t.TempDir(), "queue.db"),
		ServerURL:     punchServer.URL,
		ProbeInterval: time.Hour, // tests flip connectivity by hand
		ProbeTimeout:  time.Second,
		MaxQueueItems: 100,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		require.NoError(t, a.Shutdown(shutdownCtx))
	})

	controlServer := httptest.NewServer(a.Handler())
	t.Cleanup(controlServer.Close)

	wsURL := "ws" + strings.TrimPrefix(controlServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testHarness{agent: a, conn: conn, punches: &punches}
}

func (h *testHarness) send(t *testing.T, msgType string, payload any) {
	t.Helper()
	msg, err := control.NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, h.conn.WriteJSON(msg))
}

// await reads broadcasts until one of the wanted type arrives.
func (h *testHarness) await(t *testing.T, msgType string) control.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, h.conn.SetReadDeadline(deadline))
	for {
		var msg control.Message
		if err := h.conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func (h *testHarness) awaitStatus(t *testing.T, count int) control.QueueStatusPayload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := h.await(t, control.TypeQueueStatus)
		var status control.QueueStatusPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &status))
		if status.Count == count {
			return status
		}
	}
	t.Fatalf("never observed queue status with count %d", count)
	return control.QueueStatusPayload{}
}

func (h *testHarness) enqueuePunch(t *testing.T, ts int64) {
	t.Helper()
	h.send(t, control.TypeEnqueueRequest, control.EnqueuePayload{
		URL:       h.agent.cfg.ServerURL + "/api/v1/punches",
		Method:    http.MethodPost,
		Headers:   map[string]string{"Authorization": "Bearer token"},
		Body:      []byte(fmt.Sprintf(`{"kind":"entry","ts":%d}`, ts)),
		Timestamp: ts,
	})
}

func TestAgent_EnqueueBroadcastsStatus(t *testing.T) {
	h := newHarness(t)

	h.enqueuePunch(t, 1)
	status := h.awaitStatus(t, 1)

	require.Len(t, status.Items, 1)
	assert.Equal(t, int64(1), status.Items[0].Timestamp)
	assert.Equal(t, "Bearer token", status.Items[0].Headers["Authorization"])
}

func TestAgent_AutoSyncOnReconnect(t *testing.T) {
	h := newHarness(t)

	h.enqueuePunch(t, 1)
	h.enqueuePunch(t, 2)
	h.awaitStatus(t, 2)

	// Going online must trigger exactly one drain without user action.
	h.agent.Monitor().SetOnline(true)

	msg := h.await(t, control.TypeQueueProcessed)
	var processed control.QueueProcessedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &processed))

	assert.Equal(t, 2, processed.Processed)
	assert.Equal(t, 0, processed.Failed)
	assert.Equal(t, 0, processed.Remaining)
	assert.Equal(t, int64(2), h.punches.Load())

	h.awaitStatus(t, 0)
}

func TestAgent_ClearIsUnconditional(t *testing.T) {
	h := newHarness(t)

	for ts := int64(1); ts <= 3; ts++ {
		h.enqueuePunch(t, ts)
	}
	h.awaitStatus(t, 3)

	// Still offline; clear must work regardless of connectivity.
	h.send(t, control.TypeClearQueue, nil)
	h.await(t, control.TypeQueueCleared)

	h.send(t, control.TypeGetQueueStatus, nil)
	status := h.awaitStatus(t, 0)
	assert.Empty(t, status.Items)
	assert.Zero(t, h.punches.Load())
}

func TestAgent_ProcessQueueWhileOfflineIsSilent(t *testing.T) {
	h := newHarness(t)

	h.enqueuePunch(t, 1)
	h.awaitStatus(t, 1)

	h.send(t, control.TypeProcessQueue, nil)

	// The refusal is a silent no-op: the next observable event must not be
	// a QUEUE_PROCESSED. Ask for a status and verify it arrives first.
	h.send(t, control.TypeGetQueueStatus, nil)
	require.NoError(t, h.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg control.Message
	require.NoError(t, h.conn.ReadJSON(&msg))
	assert.Equal(t, control.TypeQueueStatus, msg.Type)
	assert.Zero(t, h.punches.Load())
}

func TestAgent_ManualSyncDrainsQueue(t *testing.T) {
	h := newHarness(t)

	h.agent.Monitor().SetOnline(true)

	h.enqueuePunch(t, 1)
	h.awaitStatus(t, 1)

	h.send(t, control.TypeProcessQueue, nil)

	msg := h.await(t, control.TypeQueueProcessed)
	var processed control.QueueProcessedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &processed))
	assert.Equal(t, 1, processed.Processed)
	assert.Equal(t, int64(1), h.punches.Load())
}
