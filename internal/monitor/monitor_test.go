package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veo1flow-25/teman-cors/internal/model"
)

type fakeTarget struct {
	fail       atomic.Bool
	probes     atomic.Int64
	keepAlives atomic.Int64
}

func (f *fakeTarget) Probe(context.Context) error {
	f.probes.Add(1)
	if f.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeTarget) KeepAlive(context.Context) error {
	f.keepAlives.Add(1)
	return nil
}

func TestProbeDemoWhenUnconfigured(t *testing.T) {
	m := New(nil, nil)
	if state := m.Probe(context.Background()); state != model.StateDemo {
		t.Fatalf("expected demo, got %s", state)
	}
}

func TestProbeOfflineWhenTargetFails(t *testing.T) {
	target := &fakeTarget{}
	target.fail.Store(true)
	m := New(target, nil)
	if state := m.Probe(context.Background()); state != model.StateOffline {
		t.Fatalf("expected offline, got %s", state)
	}
}

func TestProbeOnlineWhenTargetAnswers(t *testing.T) {
	m := New(&fakeTarget{}, nil)
	if state := m.Probe(context.Background()); state != model.StateOnline {
		t.Fatalf("expected online, got %s", state)
	}
}

func TestHeartbeatTicksAndStops(t *testing.T) {
	target := &fakeTarget{}
	m := New(target, nil)

	hb := m.StartHeartbeat(context.Background(), 10*time.Millisecond)
	if hb.State() != model.StateOnline {
		t.Fatalf("expected immediate probe, got %s", hb.State())
	}

	deadline := time.After(2 * time.Second)
	for target.probes.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("heartbeat never ticked, probes=%d", target.probes.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if target.keepAlives.Load() == 0 {
		t.Fatalf("expected keep-alive pings alongside probes")
	}

	hb.Stop()
	settled := target.probes.Load()
	time.Sleep(50 * time.Millisecond)
	if target.probes.Load() != settled {
		t.Fatalf("heartbeat kept ticking after Stop")
	}
}

func TestHeartbeatTracksStateChanges(t *testing.T) {
	target := &fakeTarget{}
	m := New(target, nil)

	hb := m.StartHeartbeat(context.Background(), 10*time.Millisecond)
	defer hb.Stop()

	target.fail.Store(true)
	deadline := time.After(2 * time.Second)
	for hb.State() != model.StateOffline {
		select {
		case <-deadline:
			t.Fatalf("state never transitioned to offline")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
