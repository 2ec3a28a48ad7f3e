package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	appConfig "github.com/ErfanAalam/MyFootFirst2-sub000/config"
)

// Storage failure kinds. Backends wrap their errors with one of these so the
// upload pipeline can report a specific failure to the user.
var (
	ErrStorageUnauthorized = errors.New("storage: unauthorized")
	ErrStorageNotFound     = errors.New("storage: object not found")
)

// BlobStore is the remote object storage holding uploaded scan photos
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// InitBlobStore creates the backend selected by BLOB_STORE
func InitBlobStore(ctx context.Context, cfg *appConfig.Config) (BlobStore, error) {
	var (
		store BlobStore
		err   error
	)

	switch cfg.BlobStore {
	case appConfig.BlobStoreS3:
		store, err = NewS3BlobStore(ctx, cfg)
	case appConfig.BlobStoreSupabase:
		store, err = NewSupabaseBlobStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	default:
		err = fmt.Errorf("unknown blob store %q", cfg.BlobStore)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
