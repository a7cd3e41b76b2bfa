package miner

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/patchpairs/shard"
	"github.com/hupe1980/patchpairs/slide"
)

// Two clusters of two patches each: 1 pixel apart within a cluster,
// ~141 pixels between clusters. At mpp 0.25 and downsample 4 the scale is
// 0.001 mm/pixel, so in-cluster pairs sit at ~0.0014 mm and cross-cluster
// pairs at ~0.2 mm.
var clusterCoords = []slide.Coord{
	{X: 0, Y: 0},
	{X: 1, Y: 0},
	{X: 100, Y: 100},
	{X: 101, Y: 100},
}

const clusterMMPerPixel = 0.001

func pairSet(pairs []shard.Pair) map[shard.Pair]bool {
	set := make(map[shard.Pair]bool, len(pairs))
	for _, p := range pairs {
		set[p] = true
	}
	return set
}

func TestClassify_Clusters(t *testing.T) {
	ctx := context.Background()

	similar, dissimilar, err := Classify(ctx, clusterCoords, clusterMMPerPixel, Thresholds{
		MaxSimilarMM:       0.01,
		MinDissimilarMM:    0.1,
		MinSimilarPairs:    4,
		MinDissimilarPairs: 8,
	})
	require.NoError(t, err)

	assert.Equal(t, map[shard.Pair]bool{
		{I: 0, J: 1}: true, {I: 1, J: 0}: true,
		{I: 2, J: 3}: true, {I: 3, J: 2}: true,
	}, pairSet(similar))

	assert.Equal(t, map[shard.Pair]bool{
		{I: 0, J: 2}: true, {I: 2, J: 0}: true,
		{I: 0, J: 3}: true, {I: 3, J: 0}: true,
		{I: 1, J: 2}: true, {I: 2, J: 1}: true,
		{I: 1, J: 3}: true, {I: 3, J: 1}: true,
	}, pairSet(dissimilar))
}

func TestClassify_WideSimilarThreshold(t *testing.T) {
	ctx := context.Background()

	// At 20 mm every distinct pair of this slide is similar; the full
	// ordered matrix scan yields N*(N-1) entries.
	similar, dissimilar, err := Classify(ctx, clusterCoords, clusterMMPerPixel, Thresholds{
		MaxSimilarMM:       20,
		MinDissimilarMM:    100,
		MinSimilarPairs:    0,
		MinDissimilarPairs: 0,
	})
	require.NoError(t, err)
	assert.Len(t, similar, 12)
	assert.Empty(t, dissimilar)
}

func TestClassify_Properties(t *testing.T) {
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	coords := make([]slide.Coord, 50)
	for i := range coords {
		coords[i] = slide.Coord{X: rng.Float64() * 1000, Y: rng.Float64() * 1000}
	}

	similar, dissimilar, err := Classify(ctx, coords, 0.001, Thresholds{
		MaxSimilarMM:    0.3,
		MinDissimilarMM: 0.7,
	})
	require.NoError(t, err)
	require.NotEmpty(t, similar)
	require.NotEmpty(t, dissimilar)

	simSet := pairSet(similar)
	disSet := pairSet(dissimilar)

	// Ordered-pair symmetry: the scan over a symmetric matrix retains both
	// directions of every qualifying pair.
	for p := range simSet {
		assert.True(t, simSet[shard.Pair{I: p.J, J: p.I}], "missing mirror of similar %v", p)
		assert.NotEqual(t, p.I, p.J)
	}
	for p := range disSet {
		assert.True(t, disSet[shard.Pair{I: p.J, J: p.I}], "missing mirror of dissimilar %v", p)
	}

	// No pair is both.
	for p := range simSet {
		assert.False(t, disSet[p], "pair %v classified both ways", p)
	}
}

func TestClassify_DuplicateCoordinatesNeverSimilar(t *testing.T) {
	ctx := context.Background()

	// Zero distance fails the 0 < d condition.
	similar, _, err := Classify(ctx, []slide.Coord{{X: 5, Y: 5}, {X: 5, Y: 5}}, 0.001, Thresholds{
		MaxSimilarMM:    10,
		MinDissimilarMM: 100,
	})
	require.NoError(t, err)
	assert.Empty(t, similar)
}

func TestClassify_InsufficientPairs(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable dissimilar threshold", func(t *testing.T) {
		_, _, err := Classify(ctx, clusterCoords, clusterMMPerPixel, Thresholds{
			MaxSimilarMM:       20,
			MinDissimilarMM:    100, // mm, far beyond any slide span
			MinSimilarPairs:    4,
			MinDissimilarPairs: 32,
		})
		var insufficient *ErrInsufficientPairs
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, shard.CategoryDissimilar, insufficient.Category)
		assert.Equal(t, 0, insufficient.Found)
		assert.Equal(t, 32, insufficient.Required)
	})

	t.Run("too few similar", func(t *testing.T) {
		_, _, err := Classify(ctx, clusterCoords, clusterMMPerPixel, Thresholds{
			MaxSimilarMM:       0.01,
			MinDissimilarMM:    0.1,
			MinSimilarPairs:    100,
			MinDissimilarPairs: 0,
		})
		var insufficient *ErrInsufficientPairs
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, shard.CategorySimilar, insufficient.Category)
		assert.Equal(t, 4, insufficient.Found)
		assert.Equal(t, 100, insufficient.Required)
	})

	t.Run("fewer than two coordinates", func(t *testing.T) {
		_, _, err := Classify(ctx, []slide.Coord{{X: 0, Y: 0}}, 0.001, Thresholds{
			MaxSimilarMM:       20,
			MinDissimilarMM:    100,
			MinSimilarPairs:    1,
			MinDissimilarPairs: 0,
		})
		var insufficient *ErrInsufficientPairs
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, shard.CategorySimilar, insufficient.Category)
		assert.Equal(t, 0, insufficient.Found)
	})
}

func TestClassify_InvalidInput(t *testing.T) {
	ctx := context.Background()

	_, _, err := Classify(ctx, clusterCoords, 0, Thresholds{MaxSimilarMM: 1, MinDissimilarMM: 2})
	require.Error(t, err)

	_, _, err = Classify(ctx, clusterCoords, 0.001, Thresholds{MaxSimilarMM: 0, MinDissimilarMM: 2})
	require.Error(t, err)

	_, _, err = Classify(ctx, clusterCoords, 0.001, Thresholds{MaxSimilarMM: 1, MinDissimilarMM: -1})
	require.Error(t, err)

	_, _, err = Classify(ctx, clusterCoords, 0.001, Thresholds{MaxSimilarMM: 1, MinDissimilarMM: 2, MinSimilarPairs: -1})
	require.Error(t, err)
}

func TestClassify_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Classify(ctx, clusterCoords, clusterMMPerPixel, Thresholds{
		MaxSimilarMM:    20,
		MinDissimilarMM: 100,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func BenchmarkClassify(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	coords := make([]slide.Coord, 512)
	for i := range coords {
		coords[i] = slide.Coord{X: rng.Float64() * 100000, Y: rng.Float64() * 100000}
	}
	t := Thresholds{MaxSimilarMM: 5, MinDissimilarMM: 50}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := Classify(context.Background(), coords, 0.001, t)
		if err != nil {
			b.Fatal(err)
		}
	}
}
