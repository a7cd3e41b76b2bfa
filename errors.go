package patchpairs

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset is returned by Open when no usable pairs exist: either the
// shard directory is empty or every shard was unavailable or empty. It is a
// distinct condition so callers never mistake a failed build for a
// legitimately zero-length dataset.
var ErrEmptyDataset = errors.New("dataset contains no pairs")

// ErrNoPatchStore is returned by Get when no PatchStore was configured.
var ErrNoPatchStore = errors.New("no patch store configured")

// ErrIndexOutOfRange indicates a Resolve index outside [0, TotalPairs).
// Always a caller error, never recovered internally.
type ErrIndexOutOfRange struct {
	Index uint64
	Total uint64
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Total)
}
