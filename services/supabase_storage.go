package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseBlobStore stores scan photos in a Supabase Storage bucket
type SupabaseBlobStore struct {
	// the storage client rewrites shared request headers on every upload
	mu      sync.Mutex
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ BlobStore = (*SupabaseBlobStore)(nil)

// NewSupabaseBlobStore creates a storage client authenticated with the service key
func NewSupabaseBlobStore(supabaseURL, serviceKey, bucket string) (*SupabaseBlobStore, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}

	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return &SupabaseBlobStore{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// Put uploads the body under key, replacing any existing object
func (s *SupabaseBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	upsert := true
	s.mu.Lock()
	_, err := s.client.UploadFile(s.bucket, key, body, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("supabase upload bucket=%s key=%s: %w", s.bucket, key, classifySupabaseError(err))
	}
	return nil
}

// Delete removes the object under key
func (s *SupabaseBlobStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	_, err := s.client.RemoveFile(s.bucket, []string{key})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("supabase remove bucket=%s key=%s: %w", s.bucket, key, classifySupabaseError(err))
	}
	return nil
}

// URL returns the public object URL
func (s *SupabaseBlobStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key), nil
}

// classifySupabaseError maps a storage API rejection onto the storage error
// kinds. Only errors the API answered with are classified; transport errors
// pass through untouched.
func classifySupabaseError(err error) error {
	var apiErr *storage.StorageError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrStorageUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrStorageNotFound, err)
	}

	// the API usually leaves status unset and only sends a message
	msg := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "row-level security"),
		strings.Contains(msg, "invalid jwt"),
		strings.Contains(msg, "signature verification failed"):
		return fmt.Errorf("%w: %w", ErrStorageUnauthorized, err)
	case strings.Contains(msg, "not found"):
		return fmt.Errorf("%w: %w", ErrStorageNotFound, err)
	}
	return err
}
