// Package portal is the foreground-facing side of the punch agent: it
// turns the control channel's push events into observable state and
// offers fire-and-forget actions for the two user intents.
//
// The portal never touches the network queue or the store directly; all
// mutation is delegated to the agent over the control channel. No error
// from this package is ever surfaced synchronously to UI code.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pontualhq/pontual/internal/agent/control"
	"github.com/pontualhq/pontual/internal/agent/queue"
	"github.com/pontualhq/pontual/internal/agent/syncer"
)

// State is the observable snapshot the UI renders from. Queue contents are
// always a stale copy pushed by the agent, never a live handle.
type State struct {
	IsOnline       bool
	PendingCount   int
	PendingItems   []queue.Item
	LastSyncResult *syncer.Result
}

// Portal is one foreground instance. Several may be connected to the same
// agent at once; every one converges to the same state via broadcasts.
type Portal struct {
	client *http.Client
	token  string

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	onChange func(State)

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Portal.
type Option func(*Portal)

// WithHTTPClient sets the transport used for direct punch submission.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Portal) { p.client = client }
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func(State)) Option {
	return func(p *Portal) { p.onChange = fn }
}

// New creates a portal holding the bearer credential that will be captured
// into queued requests.
func New(token string, opts ...Option) *Portal {
	p := &Portal{
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials the agent's control channel and starts applying its
// broadcasts. A failed dial leaves the portal in the channel-unavailable
// state: actions become silent no-ops until the next Connect. The agent
// activating shortly after the portal is expected and self-healing, so
// this is not surfaced as an error to the UI either way.
func (p *Portal) Connect(ctx context.Context, agentWSURL string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, agentWSURL, nil)
	if err != nil {
		slog.Warn("punch agent unreachable", "url", agentWSURL, "error", err)
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	go p.readLoop(conn)

	// Prime the state with a snapshot.
	p.send(control.Message{Type: control.TypeGetQueueStatus})
	return nil
}

// Close drops the control channel connection.
func (p *Portal) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// State returns a copy of the observable state.
func (p *Portal) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SyncNow requests a drain cycle. No-op while offline or when the agent is
// unreachable; completion arrives asynchronously as a QUEUE_PROCESSED
// broadcast, which may have been triggered by another portal.
func (p *Portal) SyncNow() {
	p.mu.Lock()
	online := p.state.IsOnline
	p.mu.Unlock()
	if !online {
		return
	}
	p.send(control.Message{Type: control.TypeProcessQueue})
}

// ClearQueue discards all pending punches unconditionally.
func (p *Portal) ClearQueue() {
	p.send(control.Message{Type: control.TypeClearQueue})
}

// SubmitPunch attempts the punch request directly and, on network failure
// or while offline, hands it to the agent for queued replay. The bearer
// credential is captured into the queued headers at enqueue time.
// Queued reports whether the punch was deferred.
func (p *Portal) SubmitPunch(ctx context.Context, url string, body []byte) (queued bool) {
	headers := map[string]string{
		"Authorization": "Bearer " + p.token,
		"Content-Type":  "application/json",
	}

	p.mu.Lock()
	online := p.state.IsOnline
	connected := p.conn != nil
	p.mu.Unlock()

	// Attempt direct delivery unless the agent has told us we are offline.
	// Without an agent connection there is no state to trust, so try anyway.
	if online || !connected {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			slog.Error("invalid punch request", "error", err)
			return false
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.client.Do(req)
		if err == nil {
			// Delivered. Application rejections are final; nothing to queue.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return false
		}
		slog.Warn("punch submission failed, queueing for replay", "error", err)
	}

	payload := control.EnqueuePayload{
		URL:       url,
		Method:    http.MethodPost,
		Headers:   headers,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
	}
	msg, err := control.NewMessage(control.TypeEnqueueRequest, payload)
	if err != nil {
		slog.Error("failed to build enqueue request", "error", err)
		return false
	}
	p.send(msg)
	return true
}

// send writes a message to the agent. Fire-and-forget: failures drop the
// connection and the portal degrades to silent no-ops.
func (p *Portal) send(msg control.Message) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}

	if err := conn.WriteJSON(msg); err != nil {
		slog.Warn("control channel write failed", "type", msg.Type, "error", err)
		p.dropConn(conn)
	}
}

func (p *Portal) readLoop(conn *websocket.Conn) {
	defer p.dropConn(conn)

	for {
		var msg control.Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-p.closed:
			default:
				slog.Warn("control channel closed", "error", err)
			}
			return
		}
		p.apply(msg)
	}
}

// apply folds one broadcast into the observable state.
func (p *Portal) apply(msg control.Message) {
	p.mu.Lock()

	switch msg.Type {
	case control.TypeQueueStatus:
		var status control.QueueStatusPayload
		if err := json.Unmarshal(msg.Payload, &status); err != nil {
			p.mu.Unlock()
			slog.Warn("invalid queue status", "error", err)
			return
		}
		p.state.IsOnline = status.Online
		p.state.PendingCount = status.Count
		p.state.PendingItems = status.Items

	case control.TypeQueueProcessed:
		var processed control.QueueProcessedPayload
		if err := json.Unmarshal(msg.Payload, &processed); err != nil {
			p.mu.Unlock()
			slog.Warn("invalid queue processed event", "error", err)
			return
		}
		res := processed.Result
		p.state.LastSyncResult = &res
		p.state.PendingCount = res.Remaining

	case control.TypeQueueCleared:
		p.state.PendingCount = 0
		p.state.PendingItems = nil

	default:
		p.mu.Unlock()
		return
	}

	state := p.state
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
}

func (p *Portal) dropConn(conn *websocket.Conn) {
	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
	}
	p.mu.Unlock()
	conn.Close()
}
