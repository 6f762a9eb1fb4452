// Package connectivity tracks whether the attendance server is reachable.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor is the single source of truth for the online/offline state as
// perceived by the agent. The signal is advisory: the server may become
// unreachable between probes, and a failed delivery during a drain does
// not flip the state here.
type Monitor struct {
	probe    func(ctx context.Context) error
	interval time.Duration

	mu     sync.Mutex
	online bool
	subs   []func(online bool)

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Config contains monitor settings.
type Config struct {
	// HealthURL is probed with a GET to decide reachability.
	HealthURL string
	// Interval between probes.
	Interval time.Duration
	// Timeout bounds a single probe.
	Timeout time.Duration
}

// NewMonitor creates a monitor probing the configured health endpoint.
// The initial state is offline until the first successful probe.
func NewMonitor(cfg Config) *Monitor {
	client := &http.Client{Timeout: cfg.Timeout}
	return &Monitor{
		probe: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.HealthURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= 500 {
				return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
			}
			return nil
		},
		interval: cfg.Interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Online returns the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers an edge-triggered callback invoked on every state
// transition. Callbacks run on the monitor goroutine and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetOnline updates the state and notifies subscribers on transitions.
// Exposed so tests and local runtimes can inject the connectivity signal.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	slog.Info("connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

// Start launches the probe loop. An immediate probe runs before the first
// tick so the agent does not wait a full interval after boot.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		m.runProbe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.runProbe(ctx)
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

func (m *Monitor) runProbe(ctx context.Context) {
	err := m.probe(ctx)
	if err != nil {
		slog.Debug("connectivity probe failed", "error", err)
	}
	m.SetOnline(err == nil)
}
