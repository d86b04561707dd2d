package pagecache

import (
	"context"
	"sync"
	"time"
)

// flusher periodically writes dirty pages back so that eviction rarely
// stalls on a dirty victim. Write-back bytes are charged to the resource
// controller's flush budget, keeping background IO from starving
// foreground operations.
type flusher struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startFlusher(p *ParallelPool, interval time.Duration) *flusher {
	ctx, cancel := context.WithCancel(context.Background())
	f := &flusher{cancel: cancel}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.sweep(ctx, p)
			}
		}
	}()

	return f
}

// sweep flushes dirty pages shard by shard under a flusher slot.
func (f *flusher) sweep(ctx context.Context, p *ParallelPool) {
	for _, bp := range p.pools {
		if err := p.res.AcquireFlusher(ctx); err != nil {
			return
		}
		_, err := bp.FlushDirty(ctx, 0)
		p.res.ReleaseFlusher()
		if err != nil && ctx.Err() != nil {
			return
		}
	}
}

func (f *flusher) stop() {
	f.cancel()
	f.wg.Wait()
}
