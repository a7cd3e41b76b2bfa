// Package blobstore provides storage abstraction for immutable pair-index
// shards.
//
// BlobStore is the interface for reading and writing data blobs.
// Implementations must be safe for concurrent use, and Put must be atomic:
// a blob is either fully visible with its complete content or not visible at
// all, even across a crash mid-write.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, write-to-temp-then-rename
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads
//   - minio.Store: MinIO / S3-compatible storage
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing immutable data blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically. An existing blob with the same name is
	// replaced as a whole; readers never observe partial content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether a blob exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64

	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over [off, off+length), clamped to the blob
	// size. Cloud backends serve this as a single range request, which keeps
	// header-only reads from fetching whole shards.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// ReadAll reads the complete content of a blob.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	data := make([]byte, b.Size())
	if len(data) == 0 {
		return data, nil
	}
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) != b.Size() {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
