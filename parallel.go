package pagecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/hupe1980/pagecache/buffer"
	"github.com/hupe1980/pagecache/disk"
	"github.com/hupe1980/pagecache/page"
	"github.com/hupe1980/pagecache/resource"
	"github.com/hupe1980/pagecache/wal"
)

// PoolManager is the contract of a single-shard page cache consumed by the
// parallel pool. buffer.Pool is the provided implementation; tests inject
// fakes.
//
// NewPage must allocate IDs that route back to the shard: for shard i of
// an n-shard pool, id mod n == i.
type PoolManager interface {
	// NewPage allocates and pins a new page, or fails when the shard's
	// capacity is exhausted.
	NewPage() (*page.Page, error)

	// FetchPage returns the page with the given ID, pinned, or fails when
	// the page is absent and the cache is full.
	FetchPage(id page.ID) (*page.Page, error)

	// UnpinPage marks the page unpinnable, merging the dirty flag.
	UnpinPage(id page.ID, dirty bool) bool

	// FlushPage forces the page to durable storage if present.
	FlushPage(id page.ID) bool

	// DeletePage evicts and frees the page; false if pinned or absent.
	DeletePage(id page.ID) bool

	// FlushAllPages flushes every resident page in this shard.
	FlushAllPages()

	// Capacity returns the shard's fixed frame count.
	Capacity() int

	// Close flushes and releases the shard's resources.
	Close() error
}

// shardSlot pads each shard handle to its own cache line so concurrent
// dispatch to neighboring shards does not share lines.
type shardSlot struct {
	mgr PoolManager
	_   cpu.CacheLinePad
}

// ParallelPool aggregates independent single-shard page caches into one
// logical buffer pool.
//
// Routing is deterministic: the shard owning a page is id mod numShards,
// fixed for the page's lifetime. New-page allocation fans out across
// shards round-robin, so no shard is preferentially loaded, and probes
// every shard before reporting failure.
//
// All methods are safe for concurrent use. The only pool-level shared
// mutable state is the allocation rotor; page-level synchronization lives
// inside the shards.
type ParallelPool struct {
	shards    []shardSlot
	numShards int

	// Allocation rotor. The critical section is the read-and-advance only;
	// shard calls never run under this lock.
	rotorMu    sync.Mutex
	allocIndex int

	logger  *Logger
	metrics MetricsCollector

	// Set only when the pool constructed its own shards via New.
	pools []*buffer.Pool
	wl    *wal.WAL
	res   *resource.Controller
	arch  archiveState
	flush *flusher

	closed atomic.Bool
}

// New creates a parallel pool of numShards shards with poolSize frames
// each, storing shard data files (and the WAL, if enabled) under dir.
//
// If write-ahead logging is enabled, the log is replayed into the data
// files before the pool starts serving operations.
func New(dir string, numShards, poolSize int, optFns ...Option) (*ParallelPool, error) {
	if numShards < 1 {
		return nil, ErrNoShards
	}

	opts := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("pagecache: create pool directory: %w", err)
	}

	res := resource.NewController(opts.resources)

	var wl *wal.WAL
	if opts.walEnabled {
		walOpts := append([]func(*wal.Options){func(o *wal.Options) {
			o.Path = filepath.Join(dir, "wal")
		}}, opts.walOptions...)
		var err error
		wl, err = wal.New(walOpts...)
		if err != nil {
			return nil, err
		}
	}

	pools := make([]*buffer.Pool, 0, numShards)
	closeAll := func() {
		for _, bp := range pools {
			_ = bp.Close()
		}
		if wl != nil {
			_ = wl.Close()
		}
	}

	for i := 0; i < numShards; i++ {
		dm, err := disk.NewManager(filepath.Join(dir, fmt.Sprintf("shard-%d.db", i)))
		if err != nil {
			closeAll()
			return nil, err
		}
		bp, err := buffer.NewPool(buffer.Config{
			ShardIndex:  i,
			NumShards:   numShards,
			PoolSize:    poolSize,
			Disk:        dm,
			WAL:         wl,
			Resources:   res,
			NewReplacer: opts.newReplacer,
		})
		if err != nil {
			_ = dm.Close()
			closeAll()
			return nil, err
		}
		pools = append(pools, bp)
	}

	shards := make([]shardSlot, numShards)
	for i, bp := range pools {
		shards[i].mgr = bp
	}

	p := &ParallelPool{
		shards:    shards,
		numShards: numShards,
		logger:    opts.logger,
		metrics:   opts.metrics,
		pools:     pools,
		wl:        wl,
		res:       res,
		arch:      archiveState{store: opts.archiveStore},
	}

	if wl != nil {
		if err := p.recover(); err != nil {
			closeAll()
			return nil, err
		}
	}

	if opts.flushInterval > 0 {
		p.flush = startFlusher(p, opts.flushInterval)
	}

	return p, nil
}

// NewWithShards creates a parallel pool over caller-provided shards. The
// pool takes ownership of the shards and closes them, in index order, on
// Close. Shard IDs must already be striped (shard i allocates IDs with
// id mod len(shards) == i).
//
// WAL, background flushing and checkpoint archiving are available only
// through New; this constructor provides routing and allocation fan-out
// over an externally assembled shard set.
func NewWithShards(shards []PoolManager, optFns ...Option) (*ParallelPool, error) {
	if len(shards) == 0 {
		return nil, ErrNoShards
	}

	opts := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	slots := make([]shardSlot, len(shards))
	for i, s := range shards {
		slots[i].mgr = s
	}

	return &ParallelPool{
		shards:    slots,
		numShards: len(shards),
		logger:    opts.logger,
		metrics:   opts.metrics,
	}, nil
}

// shardFor resolves the shard owning the given page ID. Total: every ID
// maps to exactly one shard. Negative IDs (including page.InvalidID) are
// normalized so that dispatch reaches a shard and misses there instead of
// faulting here.
func (p *ParallelPool) shardFor(id page.ID) PoolManager {
	i := int(id % page.ID(p.numShards))
	if i < 0 {
		i += p.numShards
	}
	return p.shards[i].mgr
}

// NumShards returns the number of shards.
func (p *ParallelPool) NumShards() int { return p.numShards }

// Capacity returns the aggregate frame count across all shards.
func (p *ParallelPool) Capacity() int {
	total := 0
	for i := range p.shards {
		total += p.shards[i].mgr.Capacity()
	}
	return total
}

// NewPage allocates a page from the pool and pins it.
//
// Shards are probed round-robin from a rotating start index, each shard
// at most once; the first successful allocation wins. The rotor advances
// before any probe, so concurrent calls always start at different shards.
// If every shard refuses, ErrPoolExhausted is returned.
func (p *ParallelPool) NewPage() (*page.Page, error) {
	begin := time.Now()

	p.rotorMu.Lock()
	start := p.allocIndex
	p.allocIndex = (p.allocIndex + 1) % p.numShards
	p.rotorMu.Unlock()

	for i := 0; i < p.numShards; i++ {
		shard := (start + i) % p.numShards
		pg, err := p.shards[shard].mgr.NewPage()
		if err == nil {
			p.metrics.RecordNewPage(i+1, time.Since(begin), nil)
			p.logger.LogNewPage(context.Background(), pg.ID(), shard, nil)
			return pg, nil
		}
	}

	p.metrics.RecordNewPage(p.numShards, time.Since(begin), ErrPoolExhausted)
	p.logger.LogNewPage(context.Background(), page.InvalidID, -1, ErrPoolExhausted)
	return nil, ErrPoolExhausted
}

// dispatch resolves the owning shard and forwards op, returning its result
// unchanged. All page-identified operations share this path.
func dispatch[R any](p *ParallelPool, id page.ID, op func(PoolManager) R) R {
	return op(p.shardFor(id))
}

type fetchResult struct {
	pg  *page.Page
	err error
}

// FetchPage returns the page with the given ID from its owning shard,
// pinned. The shard's outcome is surfaced verbatim, including the
// cache-full error when the page is absent and no frame can be freed.
func (p *ParallelPool) FetchPage(id page.ID) (*page.Page, error) {
	begin := time.Now()
	res := dispatch(p, id, func(m PoolManager) fetchResult {
		pg, err := m.FetchPage(id)
		return fetchResult{pg: pg, err: err}
	})
	p.metrics.RecordFetch(time.Since(begin), res.err)
	if res.err != nil {
		p.logger.LogFetch(context.Background(), id, res.err)
	}
	return res.pg, res.err
}

// UnpinPage decrements the page's pin count in its owning shard, merging
// the dirty flag. Returns the shard's result verbatim.
func (p *ParallelPool) UnpinPage(id page.ID, dirty bool) bool {
	ok := dispatch(p, id, func(m PoolManager) bool { return m.UnpinPage(id, dirty) })
	p.metrics.RecordUnpin(ok)
	return ok
}

// FlushPage forces the page to durable storage via its owning shard.
// Returns the shard's result verbatim.
func (p *ParallelPool) FlushPage(id page.ID) bool {
	begin := time.Now()
	ok := dispatch(p, id, func(m PoolManager) bool { return m.FlushPage(id) })
	p.metrics.RecordFlush(time.Since(begin), ok)
	return ok
}

// DeletePage evicts and frees the page via its owning shard. Returns the
// shard's result verbatim.
func (p *ParallelPool) DeletePage(id page.ID) bool {
	ok := dispatch(p, id, func(m PoolManager) bool { return m.DeletePage(id) })
	p.metrics.RecordDelete(ok)
	return ok
}

// FlushAll flushes every shard in index order. Best effort: a shard's
// failure to flush individual pages does not stop the sweep.
func (p *ParallelPool) FlushAll() {
	begin := time.Now()
	for i := range p.shards {
		p.shards[i].mgr.FlushAllPages()
	}
	p.metrics.RecordFlushAll(time.Since(begin))
	p.logger.LogFlushAll(context.Background(), p.numShards)
}

// recover replays the WAL into the shard data files.
func (p *ParallelPool) recover() error {
	replayed, err := p.wl.Replay(func(e wal.Entry) error {
		switch e.Op {
		case wal.OpPageWrite:
			if len(e.Data) != page.Size {
				return fmt.Errorf("pagecache: page image of %d bytes", len(e.Data))
			}
			buf := (*[page.Size]byte)(e.Data)
			return p.pools[int(e.PageID%page.ID(p.numShards))].ApplyRedo(e.PageID, buf)
		case wal.OpPageDelete:
			p.pools[int(e.PageID%page.ID(p.numShards))].ApplyRedoDelete(e.PageID)
		case wal.OpCheckpoint:
			// Everything before the marker is already durable; nothing to do.
		}
		return nil
	})
	p.logger.LogRecovery(context.Background(), replayed, err)
	return err
}

// Close stops background work, flushes and closes every shard in index
// order, then closes the WAL. The caller must quiesce all other
// operations first.
func (p *ParallelPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if p.flush != nil {
		p.flush.stop()
	}

	var firstErr error
	for i := range p.shards {
		if err := p.shards[i].mgr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.wl != nil {
		if err := p.wl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
