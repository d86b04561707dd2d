// Package compress provides block compression for WAL payloads and
// checkpoint snapshots.
//
// Blocks are self-describing: an 8-byte header records the uncompressed and
// compressed sizes, and a compressed size of zero means the block is stored
// verbatim. Incompressible blocks are stored verbatim automatically, so
// callers never pay for compression that does not help.
package compress

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compression algorithm.
type Codec uint8

const (
	// None disables compression.
	None Codec = 0
	// LZ4 selects LZ4 block compression (fast, good for hot data).
	LZ4 Codec = 1
	// Zstd selects zstd block compression (better ratio, good for cold data).
	Zstd Codec = 2
)

// ErrBlockCorrupt is returned when a block header or body does not decode.
var ErrBlockCorrupt = errors.New("compress: block corrupt")

// Header format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the body is stored uncompressed.
const headerSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress encodes data as a self-describing block using the given codec.
//
// If the codec is None, or compression saves less than 10% of the block,
// the body is stored verbatim and marked as such in the header.
func Compress(data []byte, codec Codec) ([]byte, error) {
	var compressed []byte
	var err error

	switch codec {
	case LZ4:
		compressed, err = compressLZ4(data)
	case Zstd:
		compressed, err = compressZstd(data)
	case None:
	default:
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, headerSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0)
		copy(result[headerSize:], data)
		return result, nil
	}

	result := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[headerSize:], compressed)
	return result, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return buf[:n], nil
}

func compressZstd(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

// Decompress decodes a block produced by Compress with the same codec.
func Decompress(block []byte, codec Codec) ([]byte, error) {
	if len(block) < headerSize {
		return nil, ErrBlockCorrupt
	}

	uncompressedSize := binary.LittleEndian.Uint32(block[0:])
	compressedSize := binary.LittleEndian.Uint32(block[4:])

	if compressedSize == 0 {
		if uint32(len(block)) < headerSize+uncompressedSize {
			return nil, ErrBlockCorrupt
		}
		return block[headerSize : headerSize+uncompressedSize], nil
	}

	if uint32(len(block)) < headerSize+compressedSize {
		return nil, ErrBlockCorrupt
	}
	body := block[headerSize : headerSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch codec {
	case LZ4:
		n, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, ErrBlockCorrupt
		}
		return result, nil

	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(body, result[:0])
		if err != nil {
			return nil, err
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, ErrBlockCorrupt
		}
		return decoded, nil

	default:
		return nil, ErrBlockCorrupt
	}
}
