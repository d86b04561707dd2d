package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/pagecache/compress"
	"github.com/hupe1980/pagecache/page"
)

// Record layout, little endian:
//
//	[bodyLen u32][crc u32][body]
//	body = [lsn u64][op u8][pageID i64][data...]
//
// crc covers the body. A record whose length or crc does not check out is
// treated as the torn tail of a crashed append; replay stops there.
const (
	recordHeaderSize = 8
	bodyFixedSize    = 17
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// errTornRecord marks the (expected) corrupt tail after a crash.
var errTornRecord = errors.New("wal: torn record")

func encodeRecord(e Entry, codec compress.Codec) ([]byte, error) {
	data := e.Data
	if e.Op == OpPageWrite && codec != compress.None {
		var err error
		data, err = compress.Compress(e.Data, codec)
		if err != nil {
			return nil, fmt.Errorf("wal: compress page image: %w", err)
		}
	}

	body := make([]byte, bodyFixedSize+len(data))
	binary.LittleEndian.PutUint64(body[0:], uint64(e.LSN))
	body[8] = byte(e.Op)
	binary.LittleEndian.PutUint64(body[9:], uint64(e.PageID))
	copy(body[bodyFixedSize:], data)

	rec := make([]byte, recordHeaderSize+len(body))
	binary.LittleEndian.PutUint32(rec[0:], uint32(len(body)))
	binary.LittleEndian.PutUint32(rec[4:], crc32.Checksum(body, crcTable))
	copy(rec[recordHeaderSize:], body)
	return rec, nil
}

// decodeRecord reads one record from r. It returns errTornRecord for any
// truncated or checksum-failing record and io.EOF at a clean end of log.
func decodeRecord(r io.Reader, codec compress.Codec) (Entry, error) {
	var hdr [recordHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, errTornRecord
	}

	bodyLen := binary.LittleEndian.Uint32(hdr[0:])
	wantCRC := binary.LittleEndian.Uint32(hdr[4:])
	if bodyLen < bodyFixedSize || bodyLen > bodyFixedSize+2*page.Size {
		return Entry{}, errTornRecord
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Entry{}, errTornRecord
	}
	if crc32.Checksum(body, crcTable) != wantCRC {
		return Entry{}, errTornRecord
	}

	e := Entry{
		LSN:    page.LSN(binary.LittleEndian.Uint64(body[0:])),
		Op:     OperationType(body[8]),
		PageID: page.ID(binary.LittleEndian.Uint64(body[9:])),
	}

	if len(body) > bodyFixedSize {
		data := body[bodyFixedSize:]
		if e.Op == OpPageWrite && codec != compress.None {
			decoded, err := compress.Decompress(data, codec)
			if err != nil {
				return Entry{}, errTornRecord
			}
			data = decoded
		}
		e.Data = append([]byte(nil), data...)
	}

	return e, nil
}
