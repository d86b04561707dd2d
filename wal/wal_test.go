package wal

import (
	"os"
	"testing"

	"github.com/hupe1980/pagecache/compress"
	"github.com/hupe1980/pagecache/page"
)

func TestWAL(t *testing.T) {
	dir := t.TempDir()

	w, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer w.Close()

	var img [page.Size]byte
	copy(img[:], []byte("after image"))

	lsn1, err := w.LogPageWrite(4, &img)
	if err != nil {
		t.Fatalf("LogPageWrite failed: %v", err)
	}
	lsn2, err := w.LogPageDelete(9)
	if err != nil {
		t.Fatalf("LogPageDelete failed: %v", err)
	}
	if lsn2 <= lsn1 {
		t.Errorf("LSNs must increase: %d then %d", lsn1, lsn2)
	}

	count, err := w.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 entries, got %d", count)
	}
}

func TestWALReplay(t *testing.T) {
	for _, codec := range []compress.Codec{compress.None, compress.LZ4, compress.Zstd} {
		dir := t.TempDir()

		w, err := New(func(o *Options) {
			o.Path = dir
			o.Compression = codec
		})
		if err != nil {
			t.Fatalf("Failed to create WAL: %v", err)
		}

		var img [page.Size]byte
		copy(img[:], []byte("replayed payload"))

		if _, err := w.LogPageWrite(6, &img); err != nil {
			t.Fatalf("LogPageWrite failed: %v", err)
		}
		if _, err := w.LogPageDelete(6); err != nil {
			t.Fatalf("LogPageDelete failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		// Reopen and replay.
		w2, err := New(func(o *Options) {
			o.Path = dir
			o.Compression = codec
		})
		if err != nil {
			t.Fatalf("Failed to reopen WAL: %v", err)
		}
		defer w2.Close()

		var entries []Entry
		replayed, err := w2.Replay(func(e Entry) error {
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
		if replayed != 2 {
			t.Fatalf("Expected 2 replayed entries, got %d", replayed)
		}

		if entries[0].Op != OpPageWrite || entries[0].PageID != 6 {
			t.Errorf("Unexpected first entry: %+v", entries[0])
		}
		if string(entries[0].Data[:16]) != "replayed payload" {
			t.Errorf("Page image corrupted on replay (codec %d)", codec)
		}
		if entries[1].Op != OpPageDelete || entries[1].PageID != 6 {
			t.Errorf("Unexpected second entry: %+v", entries[1])
		}

		// New appends continue the LSN sequence.
		lsn, err := w2.LogPageDelete(7)
		if err != nil {
			t.Fatalf("LogPageDelete after reopen failed: %v", err)
		}
		if lsn != 3 {
			t.Errorf("Expected LSN 3 after reopen, got %d", lsn)
		}
	}
}

func TestWALTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	var img [page.Size]byte
	if _, err := w.LogPageWrite(1, &img); err != nil {
		t.Fatalf("LogPageWrite failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulate a crashed append: garbage at the end of the log.
	f, err := os.OpenFile(w.FilePath(), os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	if _, err := f.Write([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}); err != nil {
		t.Fatalf("Failed to write garbage: %v", err)
	}
	_ = f.Close()

	w2, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer w2.Close()

	count, err := w2.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected the torn tail to be dropped, got %d entries", count)
	}

	// The torn tail was truncated on open, so new appends are replayable.
	if _, err := w2.LogPageDelete(2); err != nil {
		t.Fatalf("LogPageDelete after torn tail failed: %v", err)
	}
	count, err = w2.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected append after torn tail to be replayable, got %d entries", count)
	}
}

func TestWALCheckpoint(t *testing.T) {
	dir := t.TempDir()

	w, err := New(func(o *Options) {
		o.Path = dir
		o.DurabilityMode = DurabilitySync
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer w.Close()

	var img [page.Size]byte
	if _, err := w.LogPageWrite(1, &img); err != nil {
		t.Fatalf("LogPageWrite failed: %v", err)
	}
	if _, err := w.LogCheckpoint(); err != nil {
		t.Fatalf("LogCheckpoint failed: %v", err)
	}

	if err := w.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	count, err := w.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty log after checkpoint, got %d entries", count)
	}

	// The log stays usable after truncation.
	lsn, err := w.LogPageDelete(2)
	if err != nil {
		t.Fatalf("LogPageDelete after checkpoint failed: %v", err)
	}
	if lsn != 3 {
		t.Errorf("Expected LSN 3 after checkpoint, got %d", lsn)
	}
}

func TestWALFlushUpTo(t *testing.T) {
	dir := t.TempDir()

	w, err := New(func(o *Options) {
		o.Path = dir
		o.DurabilityMode = DurabilityAsync
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer w.Close()

	var img [page.Size]byte
	lsn, err := w.LogPageWrite(1, &img)
	if err != nil {
		t.Fatalf("LogPageWrite failed: %v", err)
	}

	if got := w.Flushed(); got >= lsn {
		t.Errorf("Async append must not be durable yet, flushed=%d", got)
	}
	if err := w.FlushUpTo(lsn); err != nil {
		t.Fatalf("FlushUpTo failed: %v", err)
	}
	if got := w.Flushed(); got < lsn {
		t.Errorf("Expected flushed >= %d, got %d", lsn, got)
	}

	// Already durable: a second call is a no-op.
	if err := w.FlushUpTo(lsn); err != nil {
		t.Fatalf("FlushUpTo (noop) failed: %v", err)
	}
}
