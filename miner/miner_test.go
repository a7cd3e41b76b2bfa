package miner

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/patchpairs/blobstore"
	"github.com/hupe1980/patchpairs/shard"
	"github.com/hupe1980/patchpairs/slide"
)

// fakeSlide implements slide.Slide in memory and counts coordinate reads so
// tests can assert that skipped slides never reach the classifier.
type fakeSlide struct {
	id         string
	props      map[string]string
	coords     []slide.Coord
	coordReads atomic.Int64
}

func (f *fakeSlide) ID() string { return f.id }

func (f *fakeSlide) Properties(_ context.Context) (map[string]string, error) {
	return f.props, nil
}

func (f *fakeSlide) Coordinates(_ context.Context) ([]slide.Coord, error) {
	f.coordReads.Add(1)
	return f.coords, nil
}

func mppProps(mpp string) map[string]string {
	return map[string]string{
		slide.PropMPPX: mpp,
		slide.PropMPPY: mpp,
	}
}

// testThresholds work with clusterCoords at mpp 0.25 / downsample 4.
var testThresholds = Thresholds{
	MaxSimilarMM:       0.01,
	MinDissimilarMM:    0.1,
	MinSimilarPairs:    2,
	MinDissimilarPairs: 2,
}

func newTestMiner(t *testing.T, store *shard.Store, optFns ...func(o *Options)) *Miner {
	t.Helper()
	all := append([]func(o *Options){func(o *Options) {
		o.Thresholds = testThresholds
		o.Downsample = 4
	}}, optFns...)
	m, err := New(store, all...)
	require.NoError(t, err)
	return m
}

func TestMiner_Run(t *testing.T) {
	ctx := context.Background()
	store := shard.NewStore(blobstore.NewMemoryStore())

	good := &fakeSlide{id: "good", props: mppProps("0.25"), coords: clusterCoords}
	noMeta := &fakeSlide{id: "no-meta", props: map[string]string{}, coords: clusterCoords}
	sparse := &fakeSlide{id: "sparse", props: mppProps("0.25"), coords: clusterCoords[:2]}

	m := newTestMiner(t, store)
	report, err := m.Run(ctx, []slide.Slide{good, noMeta, sparse})
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, report.Mined)
	assert.Empty(t, report.Skipped)
	require.Len(t, report.Failures, 2)
	assert.True(t, report.Failed())

	assert.Equal(t, "no-meta", report.Failures[0].SlideID)
	var missing *slide.ErrMissingMetadata
	require.ErrorAs(t, report.Failures[0].Err, &missing)

	assert.Equal(t, "sparse", report.Failures[1].SlideID)
	var insufficient *ErrInsufficientPairs
	require.ErrorAs(t, report.Failures[1].Err, &insufficient)
	assert.Equal(t, shard.CategoryDissimilar, insufficient.Category)

	// Only the successful slide persisted a shard.
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, ids)

	sh, err := store.Read(ctx, "good")
	require.NoError(t, err)
	assert.Len(t, sh.Similar, 4)
	assert.Len(t, sh.Dissimilar, 8)

	// The aggregate summary names every failed slide.
	summary := report.Summary()
	assert.Contains(t, summary, "no-meta")
	assert.Contains(t, summary, "sparse")
}

func TestMiner_SkipExistingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := shard.NewStore(blobs)

	s := &fakeSlide{id: "s1", props: mppProps("0.25"), coords: clusterCoords}

	m := newTestMiner(t, store, func(o *Options) {
		o.SkipExisting = true
	})

	report, err := m.Run(ctx, []slide.Slide{s})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, report.Mined)
	require.EqualValues(t, 1, s.coordReads.Load())

	first, err := store.Read(ctx, "s1")
	require.NoError(t, err)

	// Second run: no classifier invocation, no shard modification.
	report, err = m.Run(ctx, []slide.Slide{s})
	require.NoError(t, err)
	assert.Empty(t, report.Mined)
	assert.Equal(t, []string{"s1"}, report.Skipped)
	assert.EqualValues(t, 1, s.coordReads.Load())

	second, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first.Similar, second.Similar)
	assert.Equal(t, first.Dissimilar, second.Dissimilar)
}

func TestMiner_OverwriteWithoutSkip(t *testing.T) {
	ctx := context.Background()
	store := shard.NewStore(blobstore.NewMemoryStore())

	s := &fakeSlide{id: "s1", props: mppProps("0.25"), coords: clusterCoords}
	m := newTestMiner(t, store)

	_, err := m.Run(ctx, []slide.Slide{s})
	require.NoError(t, err)
	_, err = m.Run(ctx, []slide.Slide{s})
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.coordReads.Load())
}

func TestMiner_RunMany(t *testing.T) {
	ctx := context.Background()
	store := shard.NewStore(blobstore.NewMemoryStore())

	var slides []slide.Slide
	for i := 0; i < 20; i++ {
		slides = append(slides, &fakeSlide{
			id:     "s" + strconv.Itoa(i),
			props:  mppProps("0.25"),
			coords: clusterCoords,
		})
	}

	m := newTestMiner(t, store, func(o *Options) {
		o.Concurrency = 4
		o.Resources = &ResourceConfig{
			MaxCoordinatesInFlight: 8,
			WriteBytesPerSec:       1 << 20,
		}
	})

	report, err := m.Run(ctx, slides)
	require.NoError(t, err)
	assert.Len(t, report.Mined, 20)
	assert.Empty(t, report.Failures)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

func TestMiner_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := shard.NewStore(blobstore.NewMemoryStore())
	s := &fakeSlide{id: "s1", props: mppProps("0.25"), coords: clusterCoords}

	m := newTestMiner(t, store)
	_, err := m.Run(ctx, []slide.Slide{s})
	require.ErrorIs(t, err, context.Canceled)

	// Cancellation leaves no partial shard behind.
	exists, err := store.Exists(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMiner_MineSlide(t *testing.T) {
	ctx := context.Background()
	store := shard.NewStore(blobstore.NewMemoryStore())

	m := newTestMiner(t, store)

	s := &fakeSlide{id: "solo", props: mppProps("0.25"), coords: clusterCoords}
	require.NoError(t, m.MineSlide(ctx, s))

	h, err := store.ReadHeader(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), h.SimilarCount)
	assert.Equal(t, uint64(8), h.DissimilarCount)
}

func TestNew_Validation(t *testing.T) {
	store := shard.NewStore(blobstore.NewMemoryStore())

	_, err := New(store, func(o *Options) {
		o.Downsample = 0
	})
	require.Error(t, err)

	_, err = New(store, func(o *Options) {
		o.Thresholds.MaxSimilarMM = -1
	})
	require.Error(t, err)
}
