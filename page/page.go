package page

import "sync"

// Size is the fixed size of a page in bytes.
//
// Every page occupies exactly one Size-aligned slot in the data file, so a
// page's byte offset on disk is ID × Size.
const Size = 4096

// ID identifies a page within the pool's data file.
//
// IDs are allocated by the disk manager and striped across shards: a page
// allocated by shard i of an n-shard pool satisfies id mod n == i. Routing
// relies on that encoding; the parallel layer never constructs IDs itself.
type ID int64

// InvalidID marks a page slot that holds no page.
const InvalidID ID = -1

// FrameID indexes a buffer frame within a single shard's frame array.
type FrameID int32

// LSN is a log sequence number assigned by the write-ahead log.
type LSN uint64

// Page is one buffer frame's worth of state: the raw page bytes plus the
// bookkeeping the buffer pool needs (pin count, dirty flag, recovery LSN).
//
// The embedded RWMutex is the page latch. Callers that read or write Data
// while the page is shared must hold it; the pool's own bookkeeping fields
// are protected by the pool lock instead, so accessors here are unlatched.
// Release the latch before calling any pool method: the pool takes it
// shared when writing the page back, after its own lock.
type Page struct {
	sync.RWMutex

	id       ID
	pinCount int
	dirty    bool
	lsn      LSN
	data     [Size]byte
}

// ID returns the page's identifier, or InvalidID for an empty frame.
func (p *Page) ID() ID { return p.id }

// PinCount returns the number of callers currently pinning the page.
func (p *Page) PinCount() int { return p.pinCount }

// IsDirty reports whether the page has unflushed modifications.
func (p *Page) IsDirty() bool { return p.dirty }

// LSN returns the log sequence number of the page's latest logged mutation.
// A page must not be written back to disk before the WAL is durable up to
// this LSN.
func (p *Page) LSN() LSN { return p.lsn }

// Data returns the page's backing byte array.
func (p *Page) Data() *[Size]byte { return &p.data }

// SetID assigns the page identifier. Intended for the owning buffer pool.
func (p *Page) SetID(id ID) { p.id = id }

// SetDirty marks or clears the dirty flag.
func (p *Page) SetDirty(dirty bool) { p.dirty = dirty }

// SetLSN records the LSN of the latest logged mutation of this page.
func (p *Page) SetLSN(lsn LSN) { p.lsn = lsn }

// Pin increments the pin count.
func (p *Page) Pin() { p.pinCount++ }

// Unpin decrements the pin count. It never drops below zero.
func (p *Page) Unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

// Reset returns the frame to its empty state: no page, no pins, zeroed data.
func (p *Page) Reset() {
	p.id = InvalidID
	p.pinCount = 0
	p.dirty = false
	p.lsn = 0
	p.data = [Size]byte{}
}

// New returns an empty page frame.
func New() *Page {
	return &Page{id: InvalidID}
}
