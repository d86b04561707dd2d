// Package archive provides storage abstraction for checkpoint snapshots.
//
// A checkpoint publishes each shard's data file as an immutable named
// object. Store is the interface the pool writes through; implementations
// exist for the local filesystem, Amazon S3 and MinIO.
//
// Implementations must be safe for concurrent use: a checkpoint uploads
// all shard snapshots in parallel.
package archive

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when an archived object does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing checkpoint objects.
type Store interface {
	// Put writes an object atomically. size is the number of bytes to read
	// from r, or -1 if unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Open opens an object for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all object names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
