package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/pagecache/page"
)

func TestLRUReplacer(t *testing.T) {
	r := NewLRUReplacer(4)

	_, ok := r.Victim()
	assert.False(t, ok, "empty replacer has no victim")

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	assert.Equal(t, 3, r.Size())

	// Re-unpinning must not refresh the position.
	r.Unpin(1)
	assert.Equal(t, 3, r.Size())

	v, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, page.FrameID(1), v, "least recently unpinned goes first")

	// Pinned frames are not candidates.
	r.Pin(2)
	v, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, page.FrameID(3), v)

	_, ok = r.Victim()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())
}
