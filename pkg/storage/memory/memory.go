package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStorage keeps objects in process memory. Used in development and
// tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]object), now: time.Now}
}

func (m *MemoryStorage) Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = object{data: data, contentType: contentType, modified: m.now()}
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("failed to get file: %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, obj := range m.objects {
		if obj.modified.Before(threshold) {
			delete(m.objects, k)
		}
	}
	return nil
}

// ContentType returns the stored content type of key.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
