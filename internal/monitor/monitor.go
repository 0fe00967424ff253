// Package monitor classifies remote reachability and keeps managed backends
// warm with a fixed-interval heartbeat.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/veo1flow-25/teman-cors/internal/model"
)

// Prober is the cheap existence check a remote tier exposes. Implemented by
// sheets.Client and postgres.Store.
type Prober interface {
	Probe(ctx context.Context) error
}

// KeepAliver is the optional warm-up ping. Hosted relational stores often
// idle-suspend compute after inactivity; touching a real table prevents it.
type KeepAliver interface {
	KeepAlive(ctx context.Context) error
}

const probeTimeout = 10 * time.Second

type Monitor struct {
	target Prober // nil means no remote configured at all
	logf   func(format string, args ...interface{})
}

// New builds a monitor over the highest-priority configured remote. Pass nil
// when neither remote is configured; every probe then reports demo mode.
func New(target Prober, logf func(format string, args ...interface{})) *Monitor {
	if logf == nil {
		logf = log.Printf
	}
	return &Monitor{target: target, logf: logf}
}

// Probe runs one on-demand check: demo when nothing is configured, offline
// when the configured remote errors or times out, online otherwise.
func (m *Monitor) Probe(ctx context.Context) model.ConnectivityState {
	if m.target == nil {
		return model.StateDemo
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := m.target.Probe(probeCtx); err != nil {
		return model.StateOffline
	}
	return model.StateOnline
}

// Heartbeat is the cancellation handle StartHeartbeat returns.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state model.ConnectivityState
}

// State is the result of the most recent tick.
func (h *Heartbeat) State() model.ConnectivityState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Stop cancels the heartbeat and waits for the ticker goroutine to exit.
func (h *Heartbeat) Stop() {
	h.cancel()
	<-h.done
}

// StartHeartbeat probes on a fixed interval until stopped, running the
// keep-alive ping alongside when the target supports one. The first probe
// runs immediately so the trust indicator is accurate at startup.
func (m *Monitor) StartHeartbeat(ctx context.Context, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(ctx)
	hb := &Heartbeat{cancel: cancel, done: make(chan struct{})}

	hb.setState(m.tick(ctx))

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer close(hb.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hb.setState(m.tick(ctx))
			}
		}
	}()
	return hb
}

func (h *Heartbeat) setState(state model.ConnectivityState) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

func (m *Monitor) tick(ctx context.Context) model.ConnectivityState {
	state := m.Probe(ctx)
	if keepAliver, ok := m.target.(KeepAliver); ok && state == model.StateOnline {
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		if err := keepAliver.KeepAlive(pingCtx); err != nil {
			m.logf("heartbeat: keep-alive failed: %v", err)
		}
		cancel()
	}
	return state
}
