// Package agent runs the background punch agent: the single owner of the
// durable offline queue. Foreground portals talk to it over the control
// channel; nothing else ever mutates the store.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pontualhq/pontual/internal/agent/connectivity"
	"github.com/pontualhq/pontual/internal/agent/control"
	"github.com/pontualhq/pontual/internal/agent/queue"
	"github.com/pontualhq/pontual/internal/agent/queue/sqlite"
	"github.com/pontualhq/pontual/internal/agent/syncer"
	"github.com/pontualhq/pontual/internal/config"
)

// Drain triggers, for metrics and logs.
const (
	triggerReconnect = "reconnect"
	triggerManual    = "manual"
)

// Agent composes the queue store, connectivity monitor, sync engine and
// control channel hub.
type Agent struct {
	cfg     config.AgentConfig
	store   queue.Store
	monitor *connectivity.Monitor
	engine  *syncer.Engine
	hub     *control.Hub
	server  *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an agent from configuration. The queue store is opened (and
// created if absent) immediately so a broken store path fails fast.
func New(cfg config.AgentConfig) (*Agent, error) {
	store, err := sqlite.Open(cfg.StorePath, cfg.MaxQueueItems)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	monitor := connectivity.NewMonitor(connectivity.Config{
		HealthURL: cfg.ServerURL + "/healthz",
		Interval:  cfg.ProbeInterval,
		Timeout:   cfg.ProbeTimeout,
	})

	engine := syncer.NewEngine(store, monitor.Online, &http.Client{Timeout: 30 * time.Second})

	return &Agent{
		cfg:     cfg,
		store:   store,
		monitor: monitor,
		engine:  engine,
		hub:     control.NewHub(),
	}, nil
}

// Start launches the hub, the connectivity monitor and the message loop.
// It does not listen; call ListenAndServe (or serve Handler yourself) for
// the control channel endpoint.
func (a *Agent) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.hub.Run()
	}()

	// Auto-sync on reconnect: a transition to online triggers one drain
	// without user action. Offline transitions only update state.
	a.monitor.Subscribe(func(online bool) {
		if online {
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.drain(ctx, triggerReconnect)
			}()
		}
	})
	a.monitor.Start(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.messageLoop(ctx)
	}()
}

// Handler returns the control channel endpoints: /ws for portals and
// /metrics for scraping.
func (a *Agent) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.hub)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves the control channel on the configured local
// address, blocking until Shutdown.
func (a *Agent) ListenAndServe() error {
	a.server = &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("punch agent started",
		"listen_addr", a.cfg.ListenAddr,
		"store_path", a.cfg.StorePath,
		"server_url", a.cfg.ServerURL,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("agent server error: %w", err)
	}
	return nil
}

// Shutdown stops the agent and closes the store.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("agent server shutdown", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.monitor.Stop()
	a.hub.Stop()
	a.wg.Wait()
	return a.store.Close()
}

func (a *Agent) messageLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-a.hub.Inbound():
			if !ok {
				return
			}
			a.handleMessage(ctx, in.Message)
		}
	}
}

func (a *Agent) handleMessage(ctx context.Context, msg control.Message) {
	switch msg.Type {
	case control.TypeGetQueueStatus:
		a.broadcastStatus(ctx)

	case control.TypeProcessQueue:
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.drain(ctx, triggerManual)
		}()

	case control.TypeClearQueue:
		if err := a.store.Clear(ctx); err != nil {
			slog.Error("failed to clear queue", "error", err)
			return
		}
		a.broadcast(control.TypeQueueCleared, nil)
		a.broadcastStatus(ctx)

	case control.TypeEnqueueRequest:
		a.enqueue(ctx, msg.Payload)

	default:
		slog.Warn("unknown control message", "type", msg.Type)
	}
}

func (a *Agent) enqueue(ctx context.Context, payload json.RawMessage) {
	var req control.EnqueuePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		slog.Warn("invalid enqueue payload", "error", err)
		return
	}

	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	item := queue.Item{
		ID:        queue.NewItemID(time.Now()),
		URL:       req.URL,
		Method:    req.Method,
		Headers:   req.Headers,
		Body:      req.Body,
		Timestamp: ts,
	}

	evicted, err := a.store.Enqueue(ctx, item)
	if err != nil {
		slog.Error("failed to enqueue punch", "error", err)
		return
	}
	if evicted > 0 {
		// Degraded, not fatal: the oldest punches were dropped to make room.
		slog.Warn("queue at capacity, evicted oldest punches", "evicted", evicted)
		itemsEvicted.Add(float64(evicted))
	}

	slog.Info("punch queued for replay", "item_id", item.ID, "url", item.URL)
	a.broadcastStatus(ctx)
}

// drain runs one cycle and reports it. Refusals (offline, already
// draining) are silent no-ops per the channel's fire-and-forget contract.
func (a *Agent) drain(ctx context.Context, trigger string) {
	res, err := a.engine.Drain(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrOffline) || errors.Is(err, syncer.ErrDrainInProgress) {
			slog.Debug("drain skipped", "trigger", trigger, "reason", err)
			return
		}
		slog.Error("drain failed", "trigger", trigger, "error", err)
		return
	}

	recordDrain(trigger, res.Processed, res.Failed)
	a.broadcast(control.TypeQueueProcessed, control.QueueProcessedPayload{Result: res})
	a.broadcastStatus(ctx)
}

func (a *Agent) broadcastStatus(ctx context.Context) {
	items, err := a.store.ListAll(ctx)
	if err != nil {
		slog.Error("failed to list queue for status", "error", err)
		return
	}
	queuePending.Set(float64(len(items)))
	a.broadcast(control.TypeQueueStatus, control.QueueStatusPayload{
		Online: a.monitor.Online(),
		Count:  len(items),
		Items:  items,
	})
}

func (a *Agent) broadcast(msgType string, payload any) {
	msg, err := control.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("failed to build broadcast", "type", msgType, "error", err)
		return
	}
	a.hub.Broadcast(msg)
}

// Monitor exposes the connectivity monitor, used by tests to inject
// transitions.
func (a *Agent) Monitor() *connectivity.Monitor {
	return a.monitor
}
