package shard

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/patchpairs/blobstore"
)

func TestStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(blobstore.NewMemoryStore())

	orig := testShard(25)
	require.NoError(t, store.Write(ctx, orig))

	got, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, orig.Similar, got.Similar)
	assert.Equal(t, orig.Dissimilar, got.Dissimilar)

	h, err := store.ReadHeader(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(25), h.SimilarCount)
	assert.Equal(t, uint64(25), h.DissimilarCount)

	exists, err := store.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestStore_MissingShard(t *testing.T) {
	ctx := context.Background()
	store := NewStore(blobstore.NewMemoryStore())

	_, err := store.Read(ctx, "ghost")
	var unavailable *ErrUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "ghost", unavailable.SlideID)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	_, err = store.ReadHeader(ctx, "ghost")
	require.ErrorAs(t, err, &unavailable)

	exists, err := store.Exists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_CorruptShard(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs)

	require.NoError(t, blobs.Put(ctx, "junk"+Ext, []byte("definitely not a shard")))

	var unavailable *ErrUnavailable
	_, err := store.Read(ctx, "junk")
	require.ErrorAs(t, err, &unavailable)

	_, err = store.ReadHeader(ctx, "junk")
	require.ErrorAs(t, err, &unavailable)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Write(ctx, &Shard{
			SlideID: id,
			Similar: []Pair{{I: 0, J: 1}},
		}))
	}
	// Unrelated blobs are not shards.
	require.NoError(t, blobs.Put(ctx, "README.md", []byte("hi")))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStore_ReadHeaderFetchesHeaderOnly(t *testing.T) {
	ctx := context.Background()
	rec := &recordingStore{inner: blobstore.NewMemoryStore()}
	store := NewStore(rec)

	require.NoError(t, store.Write(ctx, testShard(1000)))

	_, err := store.ReadHeader(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, rec.rangeReads(), 1)
	assert.Equal(t, int64(HeaderSize), rec.rangeReads()[0])
}

// recordingStore records the lengths of ReadRange calls on opened blobs.
type recordingStore struct {
	inner blobstore.BlobStore

	mu      sync.Mutex
	lengths []int64
}

func (r *recordingStore) rangeReads() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.lengths...)
}

func (r *recordingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	b, err := r.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &recordingBlob{Blob: b, store: r}, nil
}

func (r *recordingStore) Put(ctx context.Context, name string, data []byte) error {
	return r.inner.Put(ctx, name, data)
}

func (r *recordingStore) Delete(ctx context.Context, name string) error {
	return r.inner.Delete(ctx, name)
}

func (r *recordingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return r.inner.List(ctx, prefix)
}

func (r *recordingStore) Exists(ctx context.Context, name string) (bool, error) {
	return r.inner.Exists(ctx, name)
}

type recordingBlob struct {
	blobstore.Blob
	store *recordingStore
}

func (b *recordingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	b.store.mu.Lock()
	b.store.lengths = append(b.store.lengths, length)
	b.store.mu.Unlock()
	return b.Blob.ReadRange(ctx, off, length)
}

func TestNewErrUnavailable(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrUnavailable("s9", cause)
	assert.Equal(t, "s9", err.SlideID)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "s9")
}
