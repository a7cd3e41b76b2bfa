package shard

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hupe1980/patchpairs/blobstore"
)

// StoreOptions configure a Store.
type StoreOptions struct {
	// Compression applied to shard payloads on write. Defaults to ZSTD.
	// Reads auto-detect from the shard header.
	Compression CompressionType
}

// Store persists and retrieves pair-index shards through a BlobStore.
// Writes are atomic: the underlying Put either publishes a complete shard or
// nothing.
type Store struct {
	blobs       blobstore.BlobStore
	compression CompressionType
}

// NewStore creates a shard store on top of a blob store.
func NewStore(blobs blobstore.BlobStore, optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{
		Compression: CompressionZSTD,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{blobs: blobs, compression: opts.Compression}
}

func blobName(slideID string) string {
	return slideID + Ext
}

// Write persists one shard keyed by its slide identifier.
func (s *Store) Write(ctx context.Context, sh *Shard) error {
	data, err := Encode(sh, s.compression)
	if err != nil {
		return fmt.Errorf("encode shard %q: %w", sh.SlideID, err)
	}
	if err := s.blobs.Put(ctx, blobName(sh.SlideID), data); err != nil {
		return fmt.Errorf("write shard %q: %w", sh.SlideID, err)
	}
	return nil
}

// Read returns the complete shard for a slide.
// Missing or corrupt shards are reported as *ErrUnavailable.
func (s *Store) Read(ctx context.Context, slideID string) (*Shard, error) {
	blob, err := s.blobs.Open(ctx, blobName(slideID))
	if err != nil {
		return nil, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	sh, err := Decode(slideID, data)
	if err != nil {
		return nil, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	return sh, nil
}

// ReadHeader returns only the shard's pair counts, fetching a fixed-size
// range instead of the whole blob. Dataset construction depends on this to
// stay O(number of shards) in memory.
func (s *Store) ReadHeader(ctx context.Context, slideID string) (Header, error) {
	blob, err := s.blobs.Open(ctx, blobName(slideID))
	if err != nil {
		return Header{}, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, HeaderSize)
	if err != nil {
		return Header{}, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	defer r.Close()

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, &ErrUnavailable{SlideID: slideID, cause: err}
	}
	return h, nil
}

// Exists reports whether a shard exists for the slide.
func (s *Store) Exists(ctx context.Context, slideID string) (bool, error) {
	return s.blobs.Exists(ctx, blobName(slideID))
}

// Delete removes a slide's shard.
func (s *Store) Delete(ctx context.Context, slideID string) error {
	return s.blobs.Delete(ctx, blobName(slideID))
}

// List returns the slide identifiers of all persisted shards in
// lexicographic order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, Ext) {
			ids = append(ids, strings.TrimSuffix(name, Ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
