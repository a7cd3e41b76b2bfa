package patchpairs

import (
	"sort"

	"github.com/hupe1980/patchpairs/shard"
)

// bucket is one contiguous half-open range [start, stop) of the flat pair
// index space, mapped to a single slide-category.
type bucket struct {
	start    uint64
	stop     uint64
	slideID  string
	category shard.Category
}

// bucketIndex is a monotonic partition of [0, total) into per-slide
// per-category ranges. Immutable after build; safe for unbounded concurrent
// readers.
type bucketIndex struct {
	buckets []bucket
	total   uint64
}

// newBucketIndex accumulates buckets from shard headers in the given slide
// order. Each shard contributes exactly two ranges: similar, then
// dissimilar. Empty categories produce zero-length ranges that can never
// resolve.
func newBucketIndex(slideIDs []string, headers []shard.Header) *bucketIndex {
	idx := &bucketIndex{
		buckets: make([]bucket, 0, 2*len(slideIDs)),
	}
	// Single accumulator; this ordering defines the flat index space.
	var offset uint64
	for i, id := range slideIDs {
		for _, cat := range []shard.Category{shard.CategorySimilar, shard.CategoryDissimilar} {
			n := headers[i].Count(cat)
			idx.buckets = append(idx.buckets, bucket{
				start:    offset,
				stop:     offset + n,
				slideID:  id,
				category: cat,
			})
			offset += n
		}
	}
	idx.total = offset
	return idx
}

// resolve maps a flat index to its bucket via binary search over the bucket
// boundaries. Bounds are half-open: index == start matches, index == stop
// belongs to the next bucket.
func (idx *bucketIndex) resolve(index uint64) (slideID string, category shard.Category, localOffset uint64, err error) {
	if index >= idx.total {
		return "", 0, 0, &ErrIndexOutOfRange{Index: index, Total: idx.total}
	}
	// First bucket whose stop exceeds index; zero-length buckets never match
	// because their stop is never greater than a contained index.
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return idx.buckets[i].stop > index
	})
	b := idx.buckets[i]
	return b.slideID, b.category, index - b.start, nil
}
