package wal

import (
	"time"

	"github.com/hupe1980/pagecache/compress"
	"github.com/hupe1980/pagecache/page"
)

// DurabilityMode defines the fsync behavior for WAL appends.
type DurabilityMode int

const (
	// DurabilityAsync performs no fsync on append. Fastest writes but risk
	// of data loss on crash. The buffer pool still forces the log before
	// writing back a dirty page, so page files never run ahead of the log.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit batches fsync at regular intervals, amortizing
	// its cost across operations. Recommended for most workloads.
	DurabilityGroupCommit

	// DurabilitySync performs fsync after every append. Slowest but
	// strongest guarantee.
	DurabilitySync
)

// OperationType represents the type of operation in the log.
type OperationType uint8

const (
	// OpPageWrite records the full after-image of a page.
	OpPageWrite OperationType = iota
	// OpPageDelete records the deallocation of a page.
	OpPageDelete
	// OpCheckpoint marks a point at or before which all logged page state
	// is durable in the data files.
	OpCheckpoint
)

// Entry is one decoded log record.
type Entry struct {
	LSN    page.LSN
	Op     OperationType
	PageID page.ID
	// Data is the page after-image for OpPageWrite, nil otherwise.
	Data []byte
}

// Options configures a WAL.
type Options struct {
	// Path is the directory holding the log file.
	Path string

	// DurabilityMode controls fsync behavior. Default: DurabilityGroupCommit.
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the fsync cadence for DurabilityGroupCommit.
	// Default: 10ms.
	GroupCommitInterval time.Duration

	// Compression selects the codec for page after-images.
	// Default: compress.None.
	Compression compress.Codec
}

// DefaultOptions are the options used when no overrides are given.
var DefaultOptions = Options{
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	Compression:         compress.None,
}
