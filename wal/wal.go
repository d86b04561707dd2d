// Package wal provides a write-ahead log of page mutations for the buffer
// pool.
//
// Every page write is logged as a full after-image before the page may be
// written back to its data file; the buffer pool enforces this by calling
// FlushUpTo with the page's recovery LSN before write-back. Appends are
// ordered by a monotonically increasing LSN.
//
// Features:
//   - Page after-image logging (LogPageWrite, LogPageDelete)
//   - Configurable fsync behavior (async / group commit / sync)
//   - Optional LZ4 or zstd compression of page images
//   - Checkpoint support for log truncation
//   - Crash-tolerant replay (torn tail records are discarded)
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/pagecache/compress"
	"github.com/hupe1980/pagecache/page"
)

const fileName = "pagecache.wal"

var fileMagic = [4]byte{'P', 'G', 'W', '0'}

// header layout: magic[4] | version u16 | codec u8 | reserved[9]
const headerSize = 16

const headerVersion = 1

// WAL provides write-ahead logging for page mutations.
type WAL struct {
	mu        sync.Mutex
	file      *os.File
	bufWriter *bufio.Writer
	filePath  string

	seqNum   page.LSN // last assigned LSN
	flushed  page.LSN // highest LSN known durable
	codec    compress.Codec
	mode     DurabilityMode
	interval time.Duration

	// Group commit worker lifecycle.
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New opens or creates the WAL in the configured directory.
func New(optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(opts.Path, 0750); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}

	filePath := filepath.Join(opts.Path, fileName)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0600) //nolint:gosec // G304: Path is configurable
	if err != nil {
		return nil, fmt.Errorf("wal: open log file: %w", err)
	}

	w := &WAL{
		file:     file,
		filePath: filePath,
		codec:    opts.Compression,
		mode:     opts.DurabilityMode,
		interval: opts.GroupCommitInterval,
	}

	existing, codec, err := readHeader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if existing {
		// The on-disk codec wins: entries already present were encoded
		// with it.
		w.codec = codec
		if err := w.recoverSeqNum(); err != nil {
			_ = file.Close()
			return nil, err
		}
	} else {
		if err := writeHeader(file, w.codec); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("wal: seek to end: %w", err)
	}
	w.bufWriter = bufio.NewWriter(file)

	if w.mode == DurabilityGroupCommit {
		w.startGroupCommit()
	}

	return w, nil
}

func writeHeader(f *os.File, codec compress.Codec) error {
	var hdr [headerSize]byte
	copy(hdr[0:4], fileMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], headerVersion)
	hdr[6] = byte(codec)
	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("wal: write header: %w", err)
	}
	return nil
}

func readHeader(f *os.File) (existing bool, codec compress.Codec, err error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, headerSize), hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, compress.None, nil
		}
		return false, compress.None, fmt.Errorf("wal: read header: %w", err)
	}
	if [4]byte(hdr[0:4]) != fileMagic {
		return false, compress.None, fmt.Errorf("wal: invalid header magic")
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != headerVersion {
		return false, compress.None, fmt.Errorf("wal: unsupported header version %d", v)
	}
	return true, compress.Codec(hdr[6]), nil
}

// recoverSeqNum scans the log for the highest intact LSN and truncates any
// torn tail, so that subsequent appends follow the last intact record.
func (w *WAL) recoverSeqNum() error {
	r := bufio.NewReader(io.NewSectionReader(w.file, headerSize, math.MaxInt64-headerSize))

	intact := int64(headerSize)
	for {
		var hdr [recordHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			break
		}
		bodyLen := binary.LittleEndian.Uint32(hdr[0:])
		wantCRC := binary.LittleEndian.Uint32(hdr[4:])
		if bodyLen < bodyFixedSize || bodyLen > bodyFixedSize+2*page.Size {
			break
		}
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			break
		}
		if crc32.Checksum(body, crcTable) != wantCRC {
			break
		}

		if lsn := page.LSN(binary.LittleEndian.Uint64(body[0:])); lsn > w.seqNum {
			w.seqNum = lsn
		}
		intact += recordHeaderSize + int64(bodyLen)
	}
	w.flushed = w.seqNum

	if err := w.file.Truncate(intact); err != nil {
		return fmt.Errorf("wal: truncate torn tail: %w", err)
	}
	return nil
}

func (w *WAL) startGroupCommit() {
	w.ticker = time.NewTicker(w.interval)
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.stopCh:
				return
			case <-w.ticker.C:
				w.mu.Lock()
				_ = w.syncLocked()
				w.mu.Unlock()
			}
		}
	}()
}

// LogPageWrite appends the after-image of a page and returns its LSN.
func (w *WAL) LogPageWrite(id page.ID, data *[page.Size]byte) (page.LSN, error) {
	return w.append(OpPageWrite, id, data[:])
}

// LogPageDelete appends a page deallocation record.
func (w *WAL) LogPageDelete(id page.ID) (page.LSN, error) {
	return w.append(OpPageDelete, id, nil)
}

// LogCheckpoint appends a checkpoint marker and forces the log to disk.
func (w *WAL) LogCheckpoint() (page.LSN, error) {
	lsn, err := w.append(OpCheckpoint, page.InvalidID, nil)
	if err != nil {
		return 0, err
	}
	return lsn, w.Sync()
}

func (w *WAL) append(op OperationType, id page.ID, data []byte) (page.LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seqNum++
	lsn := w.seqNum

	rec, err := encodeRecord(Entry{LSN: lsn, Op: op, PageID: id, Data: data}, w.codec)
	if err != nil {
		return 0, err
	}
	if _, err := w.bufWriter.Write(rec); err != nil {
		return 0, fmt.Errorf("wal: append record: %w", err)
	}

	if w.mode == DurabilitySync {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	}

	return lsn, nil
}

func (w *WAL) syncLocked() error {
	if err := w.bufWriter.Flush(); err != nil {
		return fmt.Errorf("wal: flush buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	w.flushed = w.seqNum
	return nil
}

// Sync forces all appended records to disk.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

// Flushed returns the highest LSN known to be durable.
func (w *WAL) Flushed() page.LSN {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}

// FlushUpTo ensures the log is durable at least up to lsn. The buffer pool
// calls this with a page's recovery LSN before writing the page back.
func (w *WAL) FlushUpTo(lsn page.LSN) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.flushed >= lsn {
		return nil
	}
	return w.syncLocked()
}

// Checkpoint truncates the log after a checkpoint: all page state up to the
// current LSN is durable in the data files, so the records are no longer
// needed for recovery.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.bufWriter.Flush(); err != nil {
		return fmt.Errorf("wal: flush buffer: %w", err)
	}
	if err := w.file.Truncate(headerSize); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.file.Seek(headerSize, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek after truncate: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync after truncate: %w", err)
	}
	w.bufWriter.Reset(w.file)
	w.flushed = w.seqNum
	return nil
}

// FilePath returns the path to the log file.
func (w *WAL) FilePath() string {
	return w.filePath
}

// Close stops the group commit worker, forces pending records to disk and
// closes the file.
func (w *WAL) Close() error {
	if w.ticker != nil {
		w.ticker.Stop()
		close(w.stopCh)
		w.wg.Wait()
		w.ticker = nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.syncLocked(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
