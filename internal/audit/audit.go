// Package audit is the append-only activity pipeline: every entry lands in
// the capped local mirror first so history renders offline, then mirrors to
// the remote store best-effort.
package audit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veo1flow-25/teman-cors/internal/model"
)

// RemoteLog is the remote audit tier. Implemented by postgres.Store; nil
// when no remote is configured.
type RemoteLog interface {
	AppendAudit(ctx context.Context, entry model.AuditLogEntry) error
	ListAudit(ctx context.Context, limit int) ([]model.AuditLogEntry, error)
}

// LocalLog is the capped local ring mirror. Implemented by cache.Cache.
type LocalLog interface {
	PushLog(entry model.AuditLogEntry) error
	Logs() ([]model.AuditLogEntry, error)
}

const remoteAppendTimeout = 15 * time.Second

// ListLimit bounds remote snapshots to match the local mirror cap.
const ListLimit = 50

type Pipeline struct {
	local  LocalLog
	remote RemoteLog
	logf   func(format string, args ...interface{})
	now    func() time.Time

	wg sync.WaitGroup
}

func New(local LocalLog, remote RemoteLog, logf func(format string, args ...interface{})) *Pipeline {
	if logf == nil {
		logf = log.Printf
	}
	return &Pipeline{
		local:  local,
		remote: remote,
		logf:   logf,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one entry, fire-and-forget. The local mirror is written
// synchronously; the remote leg is dispatched in the background with no
// ordering guarantee relative to other Record calls and no deduplication.
func (p *Pipeline) Record(actorEmail, action, details string) {
	entry := model.AuditLogEntry{
		ID:        uuid.NewString(),
		Timestamp: p.now().Format(time.RFC3339),
		UserEmail: actorEmail,
		Action:    action,
		Details:   details,
	}

	if err := p.local.PushLog(entry); err != nil {
		p.logf("audit: local mirror write failed: %v", err)
	}

	if p.remote == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), remoteAppendTimeout)
		defer cancel()
		if err := p.remote.AppendAudit(ctx, entry); err != nil {
			p.logf("audit: remote append failed: %v", err)
		}
	}()
}

// List returns a fresh snapshot, newest first: the remote store when
// reachable, otherwise the local mirror.
func (p *Pipeline) List(ctx context.Context) ([]model.AuditLogEntry, error) {
	if p.remote != nil {
		entries, err := p.remote.ListAudit(ctx, ListLimit)
		if err == nil {
			return entries, nil
		}
		p.logf("audit: remote list failed, serving local mirror: %v", err)
	}
	return p.local.Logs()
}

// Wait blocks until in-flight remote appends settle. Shutdown and tests only.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
