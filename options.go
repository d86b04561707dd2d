package pagecache

import (
	"time"

	"github.com/hupe1980/pagecache/archive"
	"github.com/hupe1980/pagecache/buffer"
	"github.com/hupe1980/pagecache/resource"
	"github.com/hupe1980/pagecache/wal"
)

type options struct {
	logger        *Logger
	metrics       MetricsCollector
	newReplacer   func(capacity int) buffer.Replacer
	resources     resource.Config
	walEnabled    bool
	walOptions    []func(*wal.Options)
	flushInterval time.Duration
	archiveStore  archive.Store
}

// Option configures pool construction.
type Option func(*options)

// WithLogger configures structured logging. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithReplacer configures the replacement policy used by every shard.
// The factory is invoked once per shard with the shard's frame count.
// Default: buffer.NewLRUReplacer.
func WithReplacer(newReplacer func(capacity int) buffer.Replacer) Option {
	return func(o *options) {
		o.newReplacer = newReplacer
	}
}

// WithResourceConfig bounds frame memory and background flush IO across
// all shards. The zero Config enforces nothing.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithWAL enables write-ahead logging for page write-back. The log lives
// in a wal/ subdirectory of the pool directory and is replayed on open.
//
// Example:
//
//	pool, _ := pagecache.New(dir, 4, 64,
//	    pagecache.WithWAL(func(o *wal.Options) {
//	        o.DurabilityMode = wal.DurabilitySync
//	        o.Compression = compress.LZ4
//	    }),
//	)
func WithWAL(optFns ...func(*wal.Options)) Option {
	return func(o *options) {
		o.walEnabled = true
		o.walOptions = optFns
	}
}

// WithBackgroundFlush starts a background goroutine that writes dirty
// pages back at the given interval, throttled by the resource
// controller's flush budget. Disabled if interval <= 0.
func WithBackgroundFlush(interval time.Duration) Option {
	return func(o *options) {
		o.flushInterval = interval
	}
}

// WithArchive configures an archive store for checkpoint snapshots. When
// set, Checkpoint uploads each shard's data file after flushing.
func WithArchive(store archive.Store) Option {
	return func(o *options) {
		o.archiveStore = store
	}
}
