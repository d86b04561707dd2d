package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pagecache/page"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_AllocateSequential(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 4; i++ {
		assert.Equal(t, page.ID(i), m.AllocatePage())
	}
}

func TestManager_DeallocateReuse(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 4; i++ {
		m.AllocatePage()
	}

	m.DeallocatePage(2)
	m.DeallocatePage(0)
	assert.False(t, m.Allocated(0))
	assert.False(t, m.Allocated(2))

	// Freed IDs are reused lowest-first before the file grows.
	assert.Equal(t, page.ID(0), m.AllocatePage())
	assert.Equal(t, page.ID(2), m.AllocatePage())
	assert.Equal(t, page.ID(4), m.AllocatePage())
}

func TestManager_ReadWriteRoundtrip(t *testing.T) {
	m := newTestManager(t)

	id := m.AllocatePage()
	var buf [page.Size]byte
	copy(buf[:], []byte("on disk"))
	require.NoError(t, m.WritePage(id, &buf))

	var got [page.Size]byte
	require.NoError(t, m.ReadPage(id, &got))
	assert.Equal(t, buf, got)

	assert.EqualValues(t, 1, m.Stats().Writes.Load())
	assert.EqualValues(t, 1, m.Stats().Reads.Load())
}

func TestManager_ReadUnwrittenPageIsZero(t *testing.T) {
	m := newTestManager(t)

	id := m.AllocatePage()

	got := [page.Size]byte{1, 2, 3}
	require.NoError(t, m.ReadPage(id, &got))
	assert.Equal(t, [page.Size]byte{}, got)
}

func TestManager_UnallocatedAccess(t *testing.T) {
	m := newTestManager(t)

	var buf [page.Size]byte
	assert.ErrorIs(t, m.ReadPage(5, &buf), ErrPageNotAllocated)
	assert.ErrorIs(t, m.WritePage(5, &buf), ErrPageNotAllocated)
	assert.ErrorIs(t, m.ReadPage(-1, &buf), ErrPageNotAllocated)
}

func TestManager_EnsureAllocated(t *testing.T) {
	m := newTestManager(t)

	m.EnsureAllocated(3)
	assert.True(t, m.Allocated(3))

	// The skipped-over IDs stay available for allocation.
	assert.Equal(t, page.ID(0), m.AllocatePage())
	assert.Equal(t, page.ID(1), m.AllocatePage())
	assert.Equal(t, page.ID(2), m.AllocatePage())
	assert.Equal(t, page.ID(4), m.AllocatePage())

	// Re-ensuring a freed ID takes it off the free list.
	m.DeallocatePage(1)
	m.EnsureAllocated(1)
	assert.True(t, m.Allocated(1))
	assert.Equal(t, page.ID(5), m.AllocatePage())
}

func TestManager_HorizonFromFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	m, err := NewManager(path)
	require.NoError(t, err)

	var buf [page.Size]byte
	id := m.AllocatePage()
	require.NoError(t, m.WritePage(id, &buf))
	require.NoError(t, m.Close())

	// Reopening derives the allocation horizon from the file size.
	m2, err := NewManager(path)
	require.NoError(t, err)
	defer m2.Close()

	assert.True(t, m2.Allocated(id))
	assert.Equal(t, page.ID(1), m2.AllocatePage())
}
