package pagecache

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pagecache/archive"
	"github.com/hupe1980/pagecache/page"
)

type archiveState struct {
	store archive.Store
	seq   atomic.Uint64
}

// Checkpoint flushes every shard, truncates the WAL and, when an archive
// store is configured, publishes a snapshot of each shard's data file.
//
// If any page cannot be written back, Checkpoint fails with
// ErrCheckpointIncomplete and leaves the log untouched.
//
// The flush sweep runs shard by shard in index order; only the archive
// uploads run concurrently. A checkpoint taken while writers are active
// yields a fuzzy snapshot: each shard file is internally consistent at
// page granularity, but shards are not mutually synchronized. Quiesce
// writers first if a point-in-time image is required.
func (p *ParallelPool) Checkpoint(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}

	p.FlushAll()

	// The sweep is best effort per page; a page whose write-back failed is
	// still dirty and its WAL after-image may be its only durable copy.
	// Truncating the log now would lose it, so bail out instead.
	for i, bp := range p.pools {
		if n := bp.DirtyCount(); n > 0 {
			err := fmt.Errorf("%w: shard %d has %d dirty pages", ErrCheckpointIncomplete, i, n)
			p.logger.LogCheckpoint(ctx, 0, 0, err)
			return err
		}
	}

	var lsn page.LSN
	if p.wl != nil {
		var err error
		lsn, err = p.wl.LogCheckpoint()
		if err != nil {
			p.logger.LogCheckpoint(ctx, uint64(lsn), 0, err)
			return err
		}
		if err := p.wl.Checkpoint(); err != nil {
			p.logger.LogCheckpoint(ctx, uint64(lsn), 0, err)
			return err
		}
	}

	if p.arch.store == nil || p.pools == nil {
		p.logger.LogCheckpoint(ctx, uint64(lsn), 0, nil)
		return nil
	}

	prefix := fmt.Sprintf("checkpoints/%016d", p.arch.seq.Add(1))

	g, gctx := errgroup.WithContext(ctx)
	for i, bp := range p.pools {
		g.Go(func() error {
			f, err := os.Open(bp.DiskPath())
			if err != nil {
				return fmt.Errorf("pagecache: open shard snapshot: %w", err)
			}
			defer f.Close()

			st, err := f.Stat()
			if err != nil {
				return fmt.Errorf("pagecache: stat shard snapshot: %w", err)
			}
			return p.arch.store.Put(gctx, fmt.Sprintf("%s/shard-%d.db", prefix, i), f, st.Size())
		})
	}

	err := g.Wait()
	p.logger.LogCheckpoint(ctx, uint64(lsn), len(p.pools), err)
	return err
}
