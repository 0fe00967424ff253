package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/veo1flow-25/teman-cors/internal/cache"
	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

type fakeRemoteLog struct {
	mu      sync.Mutex
	entries []model.AuditLogEntry
	down    bool
}

func (f *fakeRemoteLog) AppendAudit(_ context.Context, entry model.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errs.ErrUnreachable
	}
	f.entries = append([]model.AuditLogEntry{entry}, f.entries...)
	return nil
}

func (f *fakeRemoteLog) ListAudit(_ context.Context, limit int) ([]model.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errs.ErrUnreachable
	}
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func newLocal(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordMirrorsLocallyAndRemotely(t *testing.T) {
	local := newLocal(t)
	remote := &fakeRemoteLog{}
	pipeline := New(local, remote, nil)

	pipeline.Record("admin@teman.com", "LOGIN", "User logged in")
	pipeline.Wait()

	logs, err := local.Logs()
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one local entry, got %d err=%v", len(logs), err)
	}
	if logs[0].Action != "LOGIN" || logs[0].UserEmail != "admin@teman.com" {
		t.Fatalf("unexpected entry %+v", logs[0])
	}
	if len(remote.entries) != 1 {
		t.Fatalf("expected remote mirror, got %d", len(remote.entries))
	}
}

func TestRecordSurvivesRemoteFailure(t *testing.T) {
	local := newLocal(t)
	remote := &fakeRemoteLog{down: true}

	var mu sync.Mutex
	var logged []string
	pipeline := New(local, remote, func(format string, args ...interface{}) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, args...))
		mu.Unlock()
	})

	pipeline.Record("admin@teman.com", "SAVE", "daily_2025-06-01")
	pipeline.Wait()

	logs, _ := local.Logs()
	if len(logs) != 1 {
		t.Fatalf("expected local entry despite remote failure, got %d", len(logs))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 {
		t.Fatalf("expected one logged remote failure, got %v", logged)
	}
}

func TestListPrefersRemoteFallsBackLocal(t *testing.T) {
	local := newLocal(t)
	remote := &fakeRemoteLog{}
	pipeline := New(local, remote, nil)

	pipeline.Record("a@teman.com", "ONE", "")
	pipeline.Wait()

	entries, err := pipeline.List(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("list via remote: %d err=%v", len(entries), err)
	}

	remote.down = true
	entries, err = pipeline.List(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("list via local mirror: %d err=%v", len(entries), err)
	}
}

func TestLocalMirrorCapNewestFirst(t *testing.T) {
	local := newLocal(t)
	pipeline := New(local, nil, nil)

	for i := 0; i < cache.MaxLogEntries+5; i++ {
		pipeline.Record("a@teman.com", "TICK", fmt.Sprintf("%d", i))
	}

	entries, err := pipeline.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != cache.MaxLogEntries {
		t.Fatalf("expected cap of %d, got %d", cache.MaxLogEntries, len(entries))
	}
	if entries[0].Details != fmt.Sprintf("%d", cache.MaxLogEntries+4) {
		t.Fatalf("expected newest first, got %s", entries[0].Details)
	}
}
