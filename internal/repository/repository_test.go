package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

type fakeRemote struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
	down    bool
	saves   int
	deletes int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]json.RawMessage{}}
}

func (f *fakeRemote) GetReport(_ context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errs.ErrUnreachable
	}
	data, ok := f.records[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return data, nil
}

func (f *fakeRemote) SaveReport(_ context.Context, rec model.ReportRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errs.ErrUnreachable
	}
	f.records[rec.ID] = rec.Data
	f.saves++
	return nil
}

func (f *fakeRemote) DeleteReport(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errs.ErrUnreachable
	}
	delete(f.records, id)
	f.deletes++
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	return value, ok, nil
}

func (f *fakeCache) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func TestGetPrefersPrimaryAndWritesThrough(t *testing.T) {
	primary := newFakeRemote()
	secondary := newFakeRemote()
	cache := newFakeCache()
	primary.records["daily_2025-06-01"] = json.RawMessage(`{"src":"sheet"}`)
	secondary.records["daily_2025-06-01"] = json.RawMessage(`{"src":"db"}`)

	repo := New(primary, secondary, cache, nil)
	data, err := repo.Get(context.Background(), model.KindDaily, 2025, "2025-06-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"src":"sheet"}` {
		t.Fatalf("expected primary copy, got %s", data)
	}
	cached, ok, _ := cache.Get("report_full_2025-06-01")
	if !ok || string(cached) != `{"src":"sheet"}` {
		t.Fatalf("expected write-through cache copy, got ok=%v %s", ok, cached)
	}
}

func TestGetFallsThroughTiers(t *testing.T) {
	primary := newFakeRemote()
	secondary := newFakeRemote()
	cache := newFakeCache()
	primary.down = true
	secondary.records["financing_2025"] = json.RawMessage(`{"src":"db"}`)

	repo := New(primary, secondary, cache, nil)
	data, err := repo.Get(context.Background(), model.KindFinancing, 2025, "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"src":"db"}` {
		t.Fatalf("expected secondary copy, got %s", data)
	}

	// Both remotes down: the cached copy from the previous read answers.
	secondary.down = true
	data, err = repo.Get(context.Background(), model.KindFinancing, 2025, "")
	if err != nil {
		t.Fatalf("get from cache: %v", err)
	}
	if string(data) != `{"src":"db"}` {
		t.Fatalf("expected cached copy, got %s", data)
	}
}

func TestGetAbsentEverywhere(t *testing.T) {
	repo := New(nil, nil, newFakeCache(), nil)
	_, err := repo.Get(context.Background(), model.KindNPF, 2025, "")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutThenGetOffline(t *testing.T) {
	// No remotes at all: the optimistic local commit must still make the
	// caller's own write visible.
	repo := New(nil, nil, newFakeCache(), nil)

	payload := json.RawMessage(`{"x":1}`)
	if err := repo.Put(context.Background(), model.KindDaily, 2025, "2025-06-01", payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := repo.Get(context.Background(), model.KindDaily, 2025, "2025-06-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got, want interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	json.Unmarshal(payload, &want)
	if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPutDispatchesToBothRemotes(t *testing.T) {
	primary := newFakeRemote()
	secondary := newFakeRemote()
	repo := New(primary, secondary, newFakeCache(), nil)

	if err := repo.Put(context.Background(), model.KindCollection, 2025, "", json.RawMessage(`{"n":2}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	repo.Wait()

	if primary.saves != 1 || secondary.saves != 1 {
		t.Fatalf("expected one save per remote, got primary=%d secondary=%d", primary.saves, secondary.saves)
	}
	if string(primary.records["collection_2025"]) != `{"n":2}` {
		t.Fatalf("unexpected remote copy %s", primary.records["collection_2025"])
	}
}

func TestPutRemoteFailureIsLoggedNotSurfaced(t *testing.T) {
	primary := newFakeRemote()
	primary.down = true

	var mu sync.Mutex
	var logged []string
	logf := func(format string, args ...interface{}) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	repo := New(primary, nil, newFakeCache(), logf)
	if err := repo.Put(context.Background(), model.KindDaily, 2025, "2025-01-02", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("expected put to succeed locally, got %v", err)
	}
	repo.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 {
		t.Fatalf("expected one logged failure, got %d: %v", len(logged), logged)
	}
}

func TestDeleteLeavesCache(t *testing.T) {
	secondary := newFakeRemote()
	secondary.records["npf_2024"] = json.RawMessage(`{"old":true}`)
	cache := newFakeCache()
	cache.Put("npf_data_2024", []byte(`{"old":true}`))

	repo := New(nil, secondary, cache, nil)
	if err := repo.Delete(context.Background(), model.KindNPF, 2024, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if secondary.deletes != 1 {
		t.Fatalf("expected remote delete, got %d", secondary.deletes)
	}
	// Cache invalidation is intentionally absent.
	if _, ok, _ := cache.Get("npf_data_2024"); !ok {
		t.Fatalf("expected stale cache copy to survive delete")
	}
}
