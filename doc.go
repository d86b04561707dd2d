// Package pagecache provides a sharded page cache (parallel buffer pool)
// for database storage engines.
//
// A ParallelPool aggregates N independent single-shard buffer pools into
// one logical pool. Page IDs are striped across shards, so the shard
// owning a page is id mod N for the page's whole lifetime and every
// page-identified operation is a constant-time dispatch. New pages are
// allocated round-robin: a rotating start index spreads allocations (and
// allocation contention) evenly, and an allocation fails only after every
// shard has refused.
//
// Shard internals — pin counts, replacement policy, dirty tracking, disk
// IO and WAL coordination — live in the buffer, disk and wal packages.
// The parallel layer is purely routing and allocation fan-out: shard
// outcomes are surfaced to callers verbatim.
//
// # Basic usage
//
//	pool, err := pagecache.New(dir, 4, 64)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	pg, err := pool.NewPage()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	copy(pg.Data()[:], payload)
//	pool.UnpinPage(pg.ID(), true)
//	pool.FlushPage(pg.ID())
package pagecache
