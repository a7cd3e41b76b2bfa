// Package shard persists per-slide pair-index shards.
//
// A shard is the sole artifact of pair mining for one slide: two ordered
// collections of patch index pairs (similar, dissimilar). Shards are
// immutable once written, keyed by slide identifier, and independently
// readable. The fixed-size header makes pair counts readable without
// materializing the collections.
package shard

import (
	"fmt"
)

// Ext is the blob name extension of persisted shards.
const Ext = ".pairs"

// Category partitions pairs by geometric relationship.
type Category uint8

const (
	// CategorySimilar holds pairs closer than the similarity threshold.
	CategorySimilar Category = iota
	// CategoryDissimilar holds pairs farther than the dissimilarity threshold.
	CategoryDissimilar
)

func (c Category) String() string {
	switch c {
	case CategorySimilar:
		return "similar"
	case CategoryDissimilar:
		return "dissimilar"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Pair is an ordered pair of patch indices into one slide's coordinate set.
type Pair struct {
	I uint32
	J uint32
}

// Shard is one slide's pair-classification result.
type Shard struct {
	SlideID    string
	Similar    []Pair
	Dissimilar []Pair
}

// Pairs returns the collection for the given category.
func (s *Shard) Pairs(c Category) []Pair {
	if c == CategorySimilar {
		return s.Similar
	}
	return s.Dissimilar
}

// Header holds the shard counts readable without loading pair contents.
type Header struct {
	SimilarCount    uint64
	DissimilarCount uint64
}

// TotalPairs returns the number of pairs across both categories.
func (h Header) TotalPairs() uint64 {
	return h.SimilarCount + h.DissimilarCount
}

// Count returns the pair count for the given category.
func (h Header) Count(c Category) uint64 {
	if c == CategorySimilar {
		return h.SimilarCount
	}
	return h.DissimilarCount
}

// ErrUnavailable indicates a missing or unreadable shard. Dataset
// construction treats the slide as absent instead of aborting the build.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrUnavailable struct {
	SlideID string
	cause   error
}

// NewErrUnavailable wraps cause as a shard-unavailable condition for a slide.
func NewErrUnavailable(slideID string, cause error) *ErrUnavailable {
	return &ErrUnavailable{SlideID: slideID, cause: cause}
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("shard unavailable for slide %q: %v", e.SlideID, e.cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.cause }
