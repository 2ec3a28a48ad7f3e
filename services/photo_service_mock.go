package services

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"

	"github.com/ErfanAalam/MyFootFirst2-sub000/utils"
)

// MockPhotoService is a mock implementation of PhotoService for testing.
// It writes uploads to disk unchanged and skips decoding.
type MockPhotoService struct {
	stored    []string
	discarded []string
	mu        sync.RWMutex
}

// NewMockPhotoService creates a new mock photo service
func NewMockPhotoService() *MockPhotoService {
	return &MockPhotoService{}
}

// StorePhoto validates and saves the upload without re-encoding it
func (m *MockPhotoService) StorePhoto(fileHeader *multipart.FileHeader, dir string) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	filename, err := utils.SaveUploadedFile(fileHeader, dir)
	if err != nil {
		return "", fmt.Errorf("failed to save photo: %w", err)
	}
	path := filepath.Join(dir, filename)

	m.mu.Lock()
	m.stored = append(m.stored, path)
	m.mu.Unlock()

	return path, nil
}

// DiscardPhoto records the path and removes the file
func (m *MockPhotoService) DiscardPhoto(path string) {
	m.mu.Lock()
	m.discarded = append(m.discarded, path)
	m.mu.Unlock()

	_ = os.Remove(path)
}

// Stored returns every stored photo path (for testing assertions)
func (m *MockPhotoService) Stored() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.stored...)
}

// Discarded returns every discarded photo path
func (m *MockPhotoService) Discarded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.discarded...)
}

// Clear forgets recorded paths
func (m *MockPhotoService) Clear() {
	m.mu.Lock()
	m.stored = nil
	m.discarded = nil
	m.mu.Unlock()
}
