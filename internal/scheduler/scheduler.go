package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/crucial707/hci-undo/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Flusher is the part of the undo engine the scheduler drives.
type Flusher interface {
	Dirty() bool
	Flush(ctx context.Context) error
}

// FlushTimeout bounds a single scheduled flush.
const FlushTimeout = 30 * time.Second

// Run flushes f on the cron spec (e.g. "@every 10s") whenever the store is
// dirty, until ctx is done; it then performs one last flush and returns.
func Run(ctx context.Context, spec string, f Flusher) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { FlushIfDirty(ctx, f) }); err != nil {
		return err
	}
	slog.Info("scheduler: flush scheduled", "spec", spec)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	final, cancel := context.WithTimeout(context.Background(), FlushTimeout)
	defer cancel()
	FlushIfDirty(final, f)
	return nil
}

// FlushIfDirty runs one flush when there is something to write.
func FlushIfDirty(ctx context.Context, f Flusher) {
	if !f.Dirty() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, FlushTimeout)
	defer cancel()
	if err := f.Flush(ctx); err != nil {
		metrics.IncStoreFlushes("error")
		slog.Error("scheduler: flush failed", "err", err)
		return
	}
	metrics.IncStoreFlushes("ok")
}
