// Package buffer implements a single-shard page cache: a fixed array of
// frames, a page table, pin-count bookkeeping and a pluggable replacement
// policy, backed by a disk manager and (optionally) a write-ahead log.
//
// A Pool is one shard of the parallel pool. It allocates striped page IDs,
// so a page allocated by shard i of an n-shard pool always satisfies
// id mod n == i and the parallel layer can route by ID alone.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/pagecache/disk"
	"github.com/hupe1980/pagecache/page"
	"github.com/hupe1980/pagecache/resource"
	"github.com/hupe1980/pagecache/wal"
)

// ErrNoFreeFrame is returned when every frame is pinned and no page can be
// brought into (or created in) the cache.
var ErrNoFreeFrame = errors.New("buffer: no free frame and all pages pinned")

// Config configures a single-shard Pool.
type Config struct {
	// ShardIndex is this shard's position within the parallel pool.
	ShardIndex int

	// NumShards is the parallel pool's shard count, used to stripe
	// allocated page IDs. Must be >= 1.
	NumShards int

	// PoolSize is the number of buffer frames.
	PoolSize int

	// Disk is the shard's data file manager. The pool takes ownership and
	// closes it on Close.
	Disk *disk.Manager

	// WAL is an optional shared write-ahead log. When set, a page's
	// after-image is logged and forced before the page is written back.
	WAL *wal.WAL

	// Resources is an optional shared resource controller. Frame memory is
	// reserved from it at construction and released on Close.
	Resources *resource.Controller

	// NewReplacer builds the replacement policy. Defaults to NewLRUReplacer.
	NewReplacer func(capacity int) Replacer
}

// Pool is a single-shard buffer pool manager.
type Pool struct {
	mu sync.Mutex

	shardIndex int
	numShards  int
	poolSize   int

	frames    []*page.Page
	pageTable map[page.ID]page.FrameID
	freeList  []page.FrameID
	replacer  Replacer

	disk *disk.Manager
	wal  *wal.WAL
	res  *resource.Controller
}

// NewPool creates a single-shard pool.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.NumShards < 1 {
		return nil, fmt.Errorf("buffer: num shards must be >= 1, got %d", cfg.NumShards)
	}
	if cfg.ShardIndex < 0 || cfg.ShardIndex >= cfg.NumShards {
		return nil, fmt.Errorf("buffer: shard index %d out of range [0,%d)", cfg.ShardIndex, cfg.NumShards)
	}
	if cfg.PoolSize < 1 {
		return nil, fmt.Errorf("buffer: pool size must be >= 1, got %d", cfg.PoolSize)
	}
	if cfg.Disk == nil {
		return nil, fmt.Errorf("buffer: disk manager required")
	}

	if !cfg.Resources.TryAcquireMemory(int64(cfg.PoolSize) * page.Size) {
		return nil, fmt.Errorf("buffer: frame memory for shard %d exceeds resource limit", cfg.ShardIndex)
	}

	newReplacer := cfg.NewReplacer
	if newReplacer == nil {
		newReplacer = func(capacity int) Replacer { return NewLRUReplacer(capacity) }
	}

	p := &Pool{
		shardIndex: cfg.ShardIndex,
		numShards:  cfg.NumShards,
		poolSize:   cfg.PoolSize,
		frames:     make([]*page.Page, cfg.PoolSize),
		pageTable:  make(map[page.ID]page.FrameID, cfg.PoolSize),
		freeList:   make([]page.FrameID, 0, cfg.PoolSize),
		replacer:   newReplacer(cfg.PoolSize),
		disk:       cfg.Disk,
		wal:        cfg.WAL,
		res:        cfg.Resources,
	}
	for i := range p.frames {
		p.frames[i] = page.New()
		p.freeList = append(p.freeList, page.FrameID(i))
	}

	return p, nil
}

// localID maps a striped global page ID to the shard-local slot in the
// shard's data file.
func (p *Pool) localID(id page.ID) page.ID {
	return id / page.ID(p.numShards)
}

// globalID maps a shard-local slot back to the striped global page ID.
func (p *Pool) globalID(local page.ID) page.ID {
	return local*page.ID(p.numShards) + page.ID(p.shardIndex)
}

// ShardIndex returns this shard's position within the parallel pool.
func (p *Pool) ShardIndex() int { return p.shardIndex }

// Capacity returns the number of buffer frames.
func (p *Pool) Capacity() int { return p.poolSize }

// DiskPath returns the shard's data file path.
func (p *Pool) DiskPath() string { return p.disk.Path() }

// freeFrame hands out a usable frame: from the free list if possible,
// otherwise by evicting a victim (writing it back first if dirty).
// Caller holds p.mu.
func (p *Pool) freeFrame() (page.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		frame := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return frame, nil
	}

	frame, ok := p.replacer.Victim()
	if !ok {
		return 0, ErrNoFreeFrame
	}

	victim := p.frames[frame]
	if victim.IsDirty() {
		if err := p.writeBack(victim); err != nil {
			// Put the victim back; its page is still intact in memory.
			p.replacer.Unpin(frame)
			return 0, err
		}
	}
	delete(p.pageTable, victim.ID())
	victim.Reset()
	return frame, nil
}

// writeBack forces the WAL up to the page's after-image, then writes the
// page to the shard's data file. Caller holds p.mu.
//
// The page latch is taken shared for the duration, so a concurrent writer
// holding the latch can never be caught mid-update in the logged image.
// Callers must release the page latch before invoking any pool method.
func (p *Pool) writeBack(pg *page.Page) error {
	pg.RLock()
	defer pg.RUnlock()

	if p.wal != nil {
		lsn, err := p.wal.LogPageWrite(pg.ID(), pg.Data())
		if err != nil {
			return err
		}
		pg.SetLSN(lsn)
		if err := p.wal.FlushUpTo(lsn); err != nil {
			return err
		}
	}
	if err := p.disk.WritePage(p.localID(pg.ID()), pg.Data()); err != nil {
		return err
	}
	pg.SetDirty(false)
	return nil
}

// NewPage allocates a page and pins it in a frame.
//
// The returned ID satisfies id mod numShards == shardIndex. Returns
// ErrNoFreeFrame when the shard's capacity is exhausted (every frame
// pinned); the parallel pool then moves on to the next shard.
func (p *Pool) NewPage() (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := p.freeFrame()
	if err != nil {
		return nil, err
	}

	id := p.globalID(p.disk.AllocatePage())

	pg := p.frames[frame]
	pg.Reset()
	pg.SetID(id)
	pg.Pin()
	p.replacer.Pin(frame)
	p.pageTable[id] = frame

	return pg, nil
}

// FetchPage returns the page with the given ID, pinning it. A cache miss
// reads the page from disk into a free or victim frame; if every frame is
// pinned, ErrNoFreeFrame is returned.
func (p *Pool) FetchPage(id page.ID) (*page.Page, error) {
	if id < 0 {
		return nil, fmt.Errorf("buffer: fetch page %d: %w", id, disk.ErrPageNotAllocated)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if frame, ok := p.pageTable[id]; ok {
		pg := p.frames[frame]
		pg.Pin()
		p.replacer.Pin(frame)
		return pg, nil
	}

	frame, err := p.freeFrame()
	if err != nil {
		return nil, err
	}

	pg := p.frames[frame]
	pg.Reset()
	if err := p.disk.ReadPage(p.localID(id), pg.Data()); err != nil {
		p.freeList = append(p.freeList, frame)
		return nil, fmt.Errorf("buffer: fetch page %d: %w", id, err)
	}
	pg.SetID(id)
	pg.Pin()
	p.replacer.Pin(frame)
	p.pageTable[id] = frame

	return pg, nil
}

// UnpinPage decrements the page's pin count, merging the dirty flag.
// Returns false if the page is not resident or not pinned.
func (p *Pool) UnpinPage(id page.ID, dirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[id]
	if !ok {
		return false
	}

	pg := p.frames[frame]
	if pg.PinCount() <= 0 {
		// A missed unpin must not touch page state.
		return false
	}
	if dirty {
		pg.SetDirty(true)
	}

	pg.Unpin()
	if pg.PinCount() == 0 {
		p.replacer.Unpin(frame)
	}
	return true
}

// FlushPage writes the page to disk regardless of its dirty state.
// Returns false if the page is not resident.
func (p *Pool) FlushPage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[id]
	if !ok {
		return false
	}
	return p.writeBack(p.frames[frame]) == nil
}

// DeletePage evicts the page and frees it on disk. Returns false if the
// page is pinned or not resident.
func (p *Pool) DeletePage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[id]
	if !ok {
		return false
	}

	pg := p.frames[frame]
	if pg.PinCount() > 0 {
		return false
	}

	if p.wal != nil {
		if _, err := p.wal.LogPageDelete(id); err != nil {
			return false
		}
	}

	delete(p.pageTable, id)
	p.replacer.Pin(frame) // drop from eviction candidates
	pg.Reset()
	p.freeList = append(p.freeList, frame)
	p.disk.DeallocatePage(p.localID(id))
	return true
}

// FlushAllPages writes every resident dirty page to disk. Best effort: a
// failing page is skipped and the rest are still flushed.
func (p *Pool) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, frame := range p.pageTable {
		pg := p.frames[frame]
		if pg.IsDirty() {
			_ = p.writeBack(pg)
		}
	}
}

// DirtyCount returns the number of resident dirty pages.
func (p *Pool) DirtyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	dirty := 0
	for _, frame := range p.pageTable {
		if p.frames[frame].IsDirty() {
			dirty++
		}
	}
	return dirty
}

// FlushDirty writes back up to limit dirty pages, charging their bytes to
// the resource controller's flush budget. Used by the background flusher;
// limit <= 0 means no limit.
func (p *Pool) FlushDirty(ctx context.Context, limit int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	flushed := 0
	for _, frame := range p.pageTable {
		if limit > 0 && flushed >= limit {
			break
		}
		pg := p.frames[frame]
		if !pg.IsDirty() {
			continue
		}
		if err := p.res.AcquireFlushIO(ctx, page.Size); err != nil {
			return flushed, err
		}
		if err := p.writeBack(pg); err != nil {
			return flushed, err
		}
		flushed++
	}
	return flushed, nil
}

// ApplyRedo reinstalls a logged page after-image directly in the shard's
// data file during recovery. The pool must not be serving operations.
func (p *Pool) ApplyRedo(id page.ID, data *[page.Size]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	local := p.localID(id)
	p.disk.EnsureAllocated(local)
	return p.disk.WritePage(local, data)
}

// ApplyRedoDelete replays a logged page deallocation during recovery.
func (p *Pool) ApplyRedoDelete(id page.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.disk.DeallocatePage(p.localID(id))
}

// Close flushes all pages, releases frame memory and closes the shard's
// disk manager. The shared WAL, if any, is owned by the caller.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, frame := range p.pageTable {
		pg := p.frames[frame]
		if pg.IsDirty() {
			_ = p.writeBack(pg)
		}
	}

	p.res.ReleaseMemory(int64(p.poolSize) * page.Size)
	return p.disk.Close()
}
