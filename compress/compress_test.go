package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundtrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("page image "), 400)

	for _, codec := range []Codec{None, LZ4, Zstd} {
		block, err := Compress(compressible, codec)
		require.NoError(t, err)

		got, err := Decompress(block, codec)
		require.NoError(t, err)
		assert.Equal(t, compressible, got, "codec %d", codec)

		if codec != None {
			assert.Less(t, len(block), len(compressible), "codec %d should shrink repetitive data", codec)
		}
	}
}

func TestIncompressibleStoredVerbatim(t *testing.T) {
	data := make([]byte, 4096)
	_, err := rand.Read(data)
	require.NoError(t, err)

	for _, codec := range []Codec{LZ4, Zstd} {
		block, err := Compress(data, codec)
		require.NoError(t, err)

		got, err := Decompress(block, codec)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestEmptyBlock(t *testing.T) {
	for _, codec := range []Codec{None, LZ4, Zstd} {
		block, err := Compress(nil, codec)
		require.NoError(t, err)

		got, err := Decompress(block, codec)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestCorruptBlock(t *testing.T) {
	_, err := Decompress([]byte{1, 2, 3}, LZ4)
	assert.ErrorIs(t, err, ErrBlockCorrupt)

	// A header promising more data than present.
	_, err = Decompress([]byte{0xff, 0xff, 0, 0, 0xff, 0, 0, 0}, Zstd)
	assert.ErrorIs(t, err, ErrBlockCorrupt)
}
