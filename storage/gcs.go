package storage

import (
	"context"
	"fmt"
	"io"
	"log"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore implements ObjectStore for Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a Google Cloud Storage store using application default
// credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to access bucket %s: %w", bucket, err)
	}

	log.Printf("GCSStore initialized for bucket: %s", bucket)
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (g *GCSStore) Store(ctx context.Context, key string, body []byte) (string, error) {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(body); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write GCS object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, key), nil
}

func (g *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object body %s: %w", key, err)
	}
	return data, nil
}

func (g *GCSStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects under %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (g *GCSStore) Vacuum(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("refusing to vacuum an empty prefix")
	}
	keys, err := g.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Printf("GCSStore: nothing to vacuum under %s", prefix)
		return nil
	}
	for _, key := range keys {
		if err := g.client.Bucket(g.bucket).Object(key).Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete GCS object %s: %w", key, err)
		}
	}
	log.Printf("GCSStore: vacuumed %d objects under %s", len(keys), prefix)
	return nil
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}
