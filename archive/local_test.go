package archive

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutOpenRoundtrip(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	payload := []byte("shard snapshot bytes")
	require.NoError(t, s.Put(ctx, "checkpoints/0000000000000001/shard-0.db", bytes.NewReader(payload), int64(len(payload))))

	r, err := s.Open(ctx, "checkpoints/0000000000000001/shard-0.db")
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalStore_PutUnknownSize(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "obj", strings.NewReader("streamed"), -1))

	r, err := s.Open(ctx, "obj")
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(got))
}

func TestLocalStore_OpenMissing(t *testing.T) {
	s := NewLocalStore(t.TempDir())

	_, err := s.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	s := NewLocalStore(t.TempDir())

	assert.NoError(t, s.Delete(context.Background(), "nope"))
}

func TestLocalStore_List(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"checkpoints/1/shard-0.db", "checkpoints/1/shard-1.db", "other/blob"} {
		require.NoError(t, s.Put(ctx, name, strings.NewReader("x"), 1))
	}

	names, err := s.List(ctx, "checkpoints/")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkpoints/1/shard-0.db", "checkpoints/1/shard-1.db"}, names)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Delete(ctx, "other/blob"))
	all, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
