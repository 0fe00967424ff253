// Package repository composes the three store tiers behind one contract:
// reads prefer the remotes (Store A, then Store B, then the local cache),
// writes commit locally first and mirror to the remotes in the background.
package repository

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

// RecordStore is one remote report tier. Implemented by sheets.Client and
// postgres.Store; tests substitute in-memory fakes.
type RecordStore interface {
	GetReport(ctx context.Context, id string) (json.RawMessage, error)
	SaveReport(ctx context.Context, rec model.ReportRecord) error
	DeleteReport(ctx context.Context, id string) error
}

// LocalCache is the synchronous local tier.
type LocalCache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

const remoteWriteTimeout = 30 * time.Second

type Repository struct {
	primary   RecordStore // Store A, nil when unconfigured
	secondary RecordStore // Store B, nil when unconfigured
	cache     LocalCache
	logf      func(format string, args ...interface{})

	wg sync.WaitGroup
}

// New wires the fallback chain. Either remote may be nil. logf receives
// remote write-leg failures; nil means log.Printf.
func New(primary, secondary RecordStore, cache LocalCache, logf func(format string, args ...interface{})) *Repository {
	if logf == nil {
		logf = log.Printf
	}
	return &Repository{primary: primary, secondary: secondary, cache: cache, logf: logf}
}

// Get walks the chain remote-first. A failed or empty remote read is not an
// error: it silently degrades to the next tier. Only when every tier comes
// up empty does the caller see errs.ErrNotFound.
func (r *Repository) Get(ctx context.Context, kind model.ReportKind, year int, date string) (json.RawMessage, error) {
	id := model.ReportID(kind, year, date)
	key := model.CacheKey(kind, year, date)

	for _, remote := range []RecordStore{r.primary, r.secondary} {
		if remote == nil {
			continue
		}
		data, err := remote.GetReport(ctx, id)
		if err == nil {
			// Write-through: the cache always holds the last good remote copy.
			if cacheErr := r.cache.Put(key, data); cacheErr != nil {
				r.logf("report %s: cache write-through failed: %v", id, cacheErr)
			}
			return data, nil
		}
	}

	data, ok, err := r.cache.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	return data, nil
}

// Put commits to the local cache synchronously, then dispatches one
// background write per configured remote. The caller's next Get observes its
// own write even with every remote unreachable. Remote failures are logged,
// never surfaced, never retried; two overlapping Puts can land on a remote
// in either order (last network response wins).
func (r *Repository) Put(ctx context.Context, kind model.ReportKind, year int, date string, payload json.RawMessage) error {
	id := model.ReportID(kind, year, date)
	key := model.CacheKey(kind, year, date)

	if err := r.cache.Put(key, payload); err != nil {
		return err
	}

	rec := model.ReportRecord{ID: id, Type: kind, Year: year, Date: date, Data: payload}
	r.dispatch("sheet", r.primary, rec)
	r.dispatch("database", r.secondary, rec)
	return nil
}

func (r *Repository) dispatch(name string, remote RecordStore, rec model.ReportRecord) {
	if remote == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from the caller's context: the local commit already
		// acknowledged the write.
		ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
		defer cancel()
		if err := remote.SaveReport(ctx, rec); err != nil {
			r.logf("report %s: %s save failed: %v", rec.ID, name, err)
		}
	}()
}

// Delete removes the record from whichever remotes are configured, best
// effort. The cached copy is NOT invalidated: a later Get with both remotes
// down can still return the deleted record. Known limitation.
func (r *Repository) Delete(ctx context.Context, kind model.ReportKind, year int, date string) error {
	id := model.ReportID(kind, year, date)
	for name, remote := range map[string]RecordStore{"sheet": r.primary, "database": r.secondary} {
		if remote == nil {
			continue
		}
		if err := remote.DeleteReport(ctx, id); err != nil {
			r.logf("report %s: %s delete failed: %v", id, name, err)
		}
	}
	return nil
}

// Wait blocks until every in-flight remote write leg has settled. Used by
// graceful shutdown and by tests; ordinary callers never wait.
func (r *Repository) Wait() {
	r.wg.Wait()
}
