package wal

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// Replay reads the log from the start and invokes fn for each intact
// record in LSN order. A torn record ends the replay without error: it is
// the expected remnant of a crashed append and everything before it is
// intact thanks to per-record checksums.
//
// Replay is intended to run before the buffer pool starts serving
// operations; it does not exclude concurrent appends.
func (w *WAL) Replay(fn func(Entry) error) (int, error) {
	if err := w.Sync(); err != nil {
		return 0, err
	}

	r := bufio.NewReader(io.NewSectionReader(w.file, headerSize, math.MaxInt64-headerSize))

	replayed := 0
	for {
		e, err := decodeRecord(r, w.codec)
		if err != nil {
			// Clean EOF or torn tail: the usable log ends here.
			return replayed, nil
		}
		if err := fn(e); err != nil {
			return replayed, fmt.Errorf("wal: replay callback: %w", err)
		}
		replayed++
	}
}

// Len returns the number of intact records in the log.
func (w *WAL) Len() (int, error) {
	return w.Replay(func(Entry) error { return nil })
}
