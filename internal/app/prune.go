package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"sdkbridge/internal/storage"
	logx "sdkbridge/pkg/logx"
)

// Pruner deletes journal records older than the retention window on a cron
// schedule. Overlapping runs are skipped.
type Pruner struct {
	c         *cron.Cron
	store     storage.Store
	retention time.Duration
	log       logx.Logger
	timeout   time.Duration

	runs    atomic.Uint64
	removed atomic.Uint64
}

func NewPruner(spec string, retention time.Duration, store storage.Store, log logx.Logger) (*Pruner, error) {
	p := &Pruner{store: store, retention: retention, log: log, timeout: time.Minute}
	cl := cronLogger{log}
	p.c = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := p.c.AddFunc(spec, func() { _, _ = p.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("storage.prune_schedule: %w", err)
	}
	return p, nil
}

func (p *Pruner) Start() { p.c.Start() }

// Stop stops scheduling and waits for a running prune, or until ctx is done.
func (p *Pruner) Stop(ctx context.Context) error {
	done := p.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next is the next scheduled run.
func (p *Pruner) Next() time.Time {
	if es := p.c.Entries(); len(es) > 0 {
		return es[0].Next
	}
	return time.Time{}
}

// RunOnce prunes now.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	before := time.Now().Add(-p.retention)
	n, err := p.store.Prune(ctx, before)
	p.runs.Add(1)
	p.removed.Add(uint64(n))
	if err != nil {
		p.log.Warn("journal prune failed", logx.Err(err), logx.Int("removed", n))
		return n, err
	}
	p.log.Info("journal pruned", logx.Int("removed", n), logx.Time("before", before))
	return n, nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
