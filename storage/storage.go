package storage

import (
	"context"
	"fmt"
)

// ObjectStore is the landing-bucket surface the pipeline needs: write a
// report under a key, read it back, enumerate a prefix, and clear a prefix
// before a fresh fetch.
type ObjectStore interface {
	// Store writes body under key and returns the object URI.
	Store(ctx context.Context, key string, body []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// Vacuum deletes every object under prefix. An empty prefix is a no-op.
	Vacuum(ctx context.Context, prefix string) error
	Close() error
}

// NewObjectStore creates the appropriate store based on storage type.
func NewObjectStore(ctx context.Context, storageType, bucket, region string) (ObjectStore, error) {
	switch storageType {
	case "S3":
		return NewS3Store(ctx, bucket, region)
	case "GCS":
		return NewGCSStore(ctx, bucket)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
