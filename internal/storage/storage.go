// Package storage defines the interface for object storage operations.
// The MinIO and S3 implementations work with any S3-compatible provider
// (MinIO, AWS S3, the Supabase S3 gateway); the memory implementation backs
// local development and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roundtable/service/internal/config"
)

// ErrObjectExists is returned by Put when NoOverwrite is set and the key is taken.
var ErrObjectExists = errors.New("object already exists")

// PutOptions carries per-object metadata for Put.
type PutOptions struct {
	ContentType  string
	CacheControl string
	// NoOverwrite makes Put fail with ErrObjectExists instead of replacing
	// an existing object at the same key.
	NoOverwrite bool
}

// Storage is the interface for uploading and retrieving objects.
type Storage interface {
	// Put streams size bytes from reader to the store under key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// New builds the Storage selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageDriver {
	case "minio", "":
		return NewMinioStorage(ctx,
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StoragePublicBase,
			cfg.StorageUseSSL,
		)
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Endpoint:   cfg.StorageEndpoint,
			Region:     cfg.StorageRegion,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
		})
	case "memory":
		return NewMemoryStorage(cfg.StoragePublicBase), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
