package buffer

import (
	"container/list"

	"github.com/hupe1980/pagecache/page"
)

// Replacer selects victim frames for eviction. Implementations track only
// unpinned frames; a pinned frame is never a victim.
//
// Replacer methods are called with the owning pool's lock held, so
// implementations need no locking of their own.
type Replacer interface {
	// Victim removes and returns the next frame to evict.
	// ok is false when every frame is pinned.
	Victim() (frame page.FrameID, ok bool)

	// Pin marks a frame as in use, removing it from eviction candidates.
	Pin(frame page.FrameID)

	// Unpin marks a frame as evictable. Unpinning an already evictable
	// frame does not refresh its position.
	Unpin(frame page.FrameID)

	// Size returns the number of evictable frames.
	Size() int
}

// LRUReplacer evicts the least recently unpinned frame.
type LRUReplacer struct {
	order    *list.List // front = least recently unpinned
	elements map[page.FrameID]*list.Element
}

// NewLRUReplacer creates an LRUReplacer for up to capacity frames.
func NewLRUReplacer(capacity int) *LRUReplacer {
	return &LRUReplacer{
		order:    list.New(),
		elements: make(map[page.FrameID]*list.Element, capacity),
	}
}

// Victim implements Replacer.
func (r *LRUReplacer) Victim() (page.FrameID, bool) {
	front := r.order.Front()
	if front == nil {
		return 0, false
	}
	frame := front.Value.(page.FrameID)
	r.order.Remove(front)
	delete(r.elements, frame)
	return frame, true
}

// Pin implements Replacer.
func (r *LRUReplacer) Pin(frame page.FrameID) {
	if el, ok := r.elements[frame]; ok {
		r.order.Remove(el)
		delete(r.elements, frame)
	}
}

// Unpin implements Replacer.
func (r *LRUReplacer) Unpin(frame page.FrameID) {
	if _, ok := r.elements[frame]; ok {
		return
	}
	r.elements[frame] = r.order.PushBack(frame)
}

// Size implements Replacer.
func (r *LRUReplacer) Size() int {
	return r.order.Len()
}
