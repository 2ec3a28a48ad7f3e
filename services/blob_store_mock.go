package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// BlobCall records one operation made against MockBlobStore
type BlobCall struct {
	Op  string // "put" or "delete"
	Key string
}

// MockBlobStore is an in-memory BlobStore for testing
type MockBlobStore struct {
	objects map[string][]byte // map of key to object content
	calls   []BlobCall
	mu      sync.RWMutex

	// optional per-key failure injection
	PutErr    func(key string) error
	DeleteErr func(key string) error
}

// NewMockBlobStore creates a new mock blob store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		objects: make(map[string][]byte),
	}
}

// Put stores the body in memory
func (m *MockBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	m.calls = append(m.calls, BlobCall{Op: "put", Key: key})
	putErr := m.PutErr
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if putErr != nil {
		if err := putErr(key); err != nil {
			return err
		}
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	m.mu.Lock()
	m.objects[key] = content
	m.mu.Unlock()
	return nil
}

// Delete removes the object. Missing keys are not an error.
func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.calls = append(m.calls, BlobCall{Op: "delete", Key: key})
	deleteErr := m.DeleteErr
	m.mu.Unlock()

	if deleteErr != nil {
		if err := deleteErr(key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// URL returns a fake URL for stored objects
func (m *MockBlobStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("%w: %s", ErrStorageNotFound, key)
	}
	return "https://blobs.test/" + key, nil
}

// Seed stores an object without recording a call
func (m *MockBlobStore) Seed(key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
}

// Keys returns the stored keys, sorted
func (m *MockBlobStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeysWithPrefix returns the stored keys under prefix, sorted
func (m *MockBlobStore) KeysWithPrefix(prefix string) []string {
	var out []string
	for _, k := range m.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// FileExists checks if an object exists in mock storage
func (m *MockBlobStore) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[key]
	return exists
}

// Calls returns every Put and Delete in the order they were made
func (m *MockBlobStore) Calls() []BlobCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]BlobCall(nil), m.calls...)
}

// Clear removes all objects and recorded calls
func (m *MockBlobStore) Clear() {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.calls = nil
	m.mu.Unlock()
}
