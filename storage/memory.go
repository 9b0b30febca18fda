package storage

import (
	"context"
	"io"
	"sync"
)

// MemoryStore keeps objects in a map. Used by tests and STORE=memory runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	Domain  string
}

func NewMemoryStore(domain string) *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, Domain: domain}
}

func (m *MemoryStore) Put(_ context.Context, objectName string, u Upload) (string, error) {
	data, err := io.ReadAll(u.Body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[objectName] = data
	m.mu.Unlock()
	return publicURL(m.Domain, "", objectName), nil
}

func (m *MemoryStore) Delete(_ context.Context, objectNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range objectNames {
		delete(m.objects, n)
	}
	return nil
}

func (m *MemoryStore) Get(objectName string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[objectName]
	return b, ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
