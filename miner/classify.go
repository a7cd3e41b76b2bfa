// Package miner classifies patch pairs of whole-slide images by physical
// distance and persists one pair-index shard per slide.
//
// Mining is embarrassingly parallel across slides: each slide is read,
// classified and written independently, so the batch runner is a bounded
// worker pool with no cross-slide state beyond the aggregate report.
package miner

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/patchpairs/shard"
	"github.com/hupe1980/patchpairs/slide"
)

// diagonalAdjustment is the fixed worst-case diagonal factor applied
// uniformly in the pixel-to-millimeter conversion. It is part of the
// distance contract, not a tunable.
const diagonalAdjustment = math.Sqrt2

// Thresholds are the distance and count requirements for one slide's
// classification.
type Thresholds struct {
	// MaxSimilarMM: pairs with 0 < distance < MaxSimilarMM millimeters are
	// similar.
	MaxSimilarMM float64

	// MinDissimilarMM: pairs with distance > MinDissimilarMM millimeters are
	// dissimilar. Should exceed MaxSimilarMM; not enforced.
	MinDissimilarMM float64

	// MinSimilarPairs and MinDissimilarPairs are the smallest acceptable
	// pair counts. A slide below either count fails classification.
	MinSimilarPairs    int
	MinDissimilarPairs int
}

func (t Thresholds) validate() error {
	if t.MaxSimilarMM <= 0 {
		return fmt.Errorf("max similar distance must be positive, got %g", t.MaxSimilarMM)
	}
	if t.MinDissimilarMM <= 0 {
		return fmt.Errorf("min dissimilar distance must be positive, got %g", t.MinDissimilarMM)
	}
	if t.MinSimilarPairs < 0 || t.MinDissimilarPairs < 0 {
		return fmt.Errorf("minimum pair counts must be non-negative")
	}
	return nil
}

// ErrInsufficientPairs indicates a slide that produced fewer pairs of a
// category than required. Deterministic for fixed inputs and thresholds, so
// it is reported, never retried.
type ErrInsufficientPairs struct {
	Category shard.Category
	Found    int
	Required int
}

func (e *ErrInsufficientPairs) Error() string {
	return fmt.Sprintf("only found %d %s pairs out of %d required", e.Found, e.Category, e.Required)
}

// Classify partitions all ordered patch pairs of one coordinate set into
// similar and dissimilar sets.
//
// Physical distance is sqrt(2) * mmPerPixel * Euclidean pixel distance. The
// scan walks the symmetric distance matrix row by row without materializing
// it, so memory stays O(result) for arbitrarily large N; both (i,j) and
// (j,i) are retained, matching a dense zero-diagonal matrix scan. The
// context is checked per row, so a large slide's classification can be
// cancelled mid-computation.
func Classify(ctx context.Context, coords []slide.Coord, mmPerPixel float64, t Thresholds) (similar, dissimilar []shard.Pair, err error) {
	if err := t.validate(); err != nil {
		return nil, nil, err
	}
	if mmPerPixel <= 0 {
		return nil, nil, fmt.Errorf("millimeters per pixel must be positive, got %g", mmPerPixel)
	}

	// Thresholds are rescaled once into squared pixel space; comparisons on
	// squared distances classify identically because all quantities are
	// non-negative.
	scale := diagonalAdjustment * mmPerPixel
	maxSimilarSq := sq(t.MaxSimilarMM / scale)
	minDissimilarSq := sq(t.MinDissimilarMM / scale)

	for i := range coords {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for j := range coords {
			dx := coords[i].X - coords[j].X
			dy := coords[i].Y - coords[j].Y
			distSq := dx*dx + dy*dy

			switch {
			case distSq > 0 && distSq < maxSimilarSq:
				similar = append(similar, shard.Pair{I: uint32(i), J: uint32(j)})
			case distSq > minDissimilarSq:
				dissimilar = append(dissimilar, shard.Pair{I: uint32(i), J: uint32(j)})
			}
		}
	}

	if len(similar) < t.MinSimilarPairs {
		return nil, nil, &ErrInsufficientPairs{
			Category: shard.CategorySimilar,
			Found:    len(similar),
			Required: t.MinSimilarPairs,
		}
	}
	if len(dissimilar) < t.MinDissimilarPairs {
		return nil, nil, &ErrInsufficientPairs{
			Category: shard.CategoryDissimilar,
			Found:    len(dissimilar),
			Required: t.MinDissimilarPairs,
		}
	}
	return similar, dissimilar, nil
}

func sq(v float64) float64 { return v * v }
