// Package blob persists the static assets provisioning publishes (translation bundles,
// exchange-rate snapshots) to S3-compatible object storage.
package blob

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Store writes named objects into one container. Save overwrites any existing object.
type Store interface {
	Save(ctx context.Context, path string, content []byte, contentType string) error
}

var ErrEmptyPath = errors.New("blob path is required")

// MemoryStore keeps objects in process. Used when no object storage endpoint is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (m *MemoryStore) Save(_ context.Context, path string, content []byte, _ string) error {
	if path == "" {
		return ErrEmptyPath
	}
	m.mu.Lock()
	m.objects[path] = append([]byte(nil), content...)
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the object stored at path.
func (m *MemoryStore) Get(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func (m *MemoryStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
