// Package resource provides process-wide budgeting for buffer pool memory
// and background flush IO.
//
// A single Controller is shared by every shard of a pool so that frame
// memory and write-back throughput are bounded globally, not per shard.
// A nil Controller enforces nothing; all methods are nil-receiver safe.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for buffer frame memory across all
	// shards. If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxBackgroundFlushers is the maximum number of concurrent background
	// write-back jobs. If 0, defaults to 1.
	MaxBackgroundFlushers int64

	// FlushLimitBytesPerSec is the maximum write-back throughput for
	// background flushing. Foreground flushes (FlushPage, FlushAll) are
	// never throttled. If 0, unlimited.
	FlushLimitBytesPerSec int64
}

// Controller manages global resources (frame memory, flush concurrency, IO).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Concurrency
	flushSem *semaphore.Weighted

	// IO
	flushLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundFlushers <= 0 {
		cfg.MaxBackgroundFlushers = 1
	}

	c := &Controller{
		cfg:      cfg,
		flushSem: semaphore.NewWeighted(cfg.MaxBackgroundFlushers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.FlushLimitBytesPerSec > 0 {
		c.flushLimiter = rate.NewLimiter(rate.Limit(cfg.FlushLimitBytesPerSec), int(cfg.FlushLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves frame memory. If a hard limit is configured and
// usage would exceed it, this blocks until memory is released or ctx is
// canceled. Shards reserve their whole frame array at construction, so a
// pool that cannot fit its frames fails to construct rather than thrashing.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves frame memory without blocking.
// Returns false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved frame memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current reserved frame memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireFlusher reserves a background flush slot, blocking if all slots
// are busy.
func (c *Controller) AcquireFlusher(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.flushSem.Acquire(ctx, 1)
}

// TryAcquireFlusher reserves a background flush slot without blocking.
func (c *Controller) TryAcquireFlusher() bool {
	if c == nil {
		return true
	}
	return c.flushSem.TryAcquire(1)
}

// ReleaseFlusher releases a background flush slot.
func (c *Controller) ReleaseFlusher() {
	if c == nil {
		return
	}
	c.flushSem.Release(1)
}

// AcquireFlushIO waits until the background flush limit allows the
// specified number of bytes.
func (c *Controller) AcquireFlushIO(ctx context.Context, bytes int) error {
	if c == nil || c.flushLimiter == nil {
		return nil
	}
	return c.flushLimiter.WaitN(ctx, bytes)
}
