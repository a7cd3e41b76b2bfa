package patchpairs

import (
	"context"
	"fmt"
	"sync"
)

// PatchStore is the collaborator that maps (slide identifier, patch index)
// to image data. The dataset never reads or writes pixels itself; it only
// dereferences the two coordinate indices of a resolved pair.
type PatchStore interface {
	Patch(ctx context.Context, slideID string, index uint32) ([]byte, error)
}

// MemoryPatchStore is an in-memory PatchStore for tests and examples.
// Thread-safe for concurrent use.
type MemoryPatchStore struct {
	mu      sync.RWMutex
	patches map[string][][]byte
}

// NewMemoryPatchStore creates an empty in-memory patch store.
func NewMemoryPatchStore() *MemoryPatchStore {
	return &MemoryPatchStore{
		patches: make(map[string][][]byte),
	}
}

// Add appends a patch image for a slide and returns its index.
func (m *MemoryPatchStore) Add(slideID string, img []byte) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patches[slideID] = append(m.patches[slideID], img)
	return uint32(len(m.patches[slideID]) - 1)
}

// Patch returns the image data for one patch.
func (m *MemoryPatchStore) Patch(_ context.Context, slideID string, index uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	imgs, ok := m.patches[slideID]
	if !ok {
		return nil, fmt.Errorf("no patches for slide %q", slideID)
	}
	if index >= uint32(len(imgs)) {
		return nil, fmt.Errorf("patch index %d out of range for slide %q", index, slideID)
	}
	return imgs[index], nil
}
