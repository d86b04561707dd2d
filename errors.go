package pagecache

import "errors"

var (
	// ErrNoShards is returned when constructing a pool with zero shards.
	ErrNoShards = errors.New("pagecache: at least one shard required")

	// ErrPoolExhausted is returned by NewPage after every shard has refused
	// an allocation: the aggregate pool is full. It is the only failure
	// that involves more than one shard; all other operation outcomes are
	// the owning shard's, surfaced verbatim.
	ErrPoolExhausted = errors.New("pagecache: all shards exhausted")

	// ErrClosed is returned for operations on a closed pool.
	ErrClosed = errors.New("pagecache: pool is closed")

	// ErrCheckpointIncomplete is returned by Checkpoint when dirty pages
	// remain after the flush sweep. The write-ahead log is left untouched:
	// it may hold the only durable copy of those pages.
	ErrCheckpointIncomplete = errors.New("pagecache: dirty pages remain after flush sweep")
)
