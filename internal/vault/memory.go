package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"capsule-go/internal/capsule"
)

// MemoryVault is an in-memory implementation of the ObjectStore interface.
// It holds all objects in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryVault creates a new in-memory object store.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{objects: make(map[string][]byte)}
}

// Put stores the bytes read from r under path.
func (m *MemoryVault) Put(_ context.Context, path string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[path] = data
	return nil
}

// Get retrieves the object at path and writes it to w.
func (m *MemoryVault) Get(_ context.Context, path string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[path]
	if !ok {
		return fmt.Errorf("object not found: %s", path)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	return nil
}

// Delete removes the object at path. Missing objects are not an error.
func (m *MemoryVault) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, path)
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Len returns the number of stored objects. Intended for tests.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Compile-time check that MemoryVault implements the ObjectStore interface
var _ capsule.ObjectStore = (*MemoryVault)(nil)
