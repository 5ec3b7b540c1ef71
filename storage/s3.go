package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3DeleteBatchMax is the S3 limit on object identifiers per DeleteObjects
// request.
const s3DeleteBatchMax = 1000

// s3API is the slice of the S3 client this store uses.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store implements ObjectStore for Amazon S3.
type S3Store struct {
	api      s3API
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store creates an S3 store.
//
// Credentials come from the default chain: environment variables, the shared
// credentials file, or an attached IAM role.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(3),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", bucket, err)
	}

	log.Printf("S3Store initialized for bucket: %s in region: %s", bucket, region)
	return newS3StoreWithAPI(client, bucket), nil
}

func newS3StoreWithAPI(api s3API, bucket string) *S3Store {
	return &S3Store{
		api:      api,
		uploader: manager.NewUploader(api),
		bucket:   bucket,
	}
}

func (s *S3Store) Store(ctx context.Context, key string, body []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3 %s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object %s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *S3Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects under %s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Store) Vacuum(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("refusing to vacuum an empty prefix")
	}
	keys, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Printf("S3Store: nothing to vacuum under %s/%s", s.bucket, prefix)
		return nil
	}

	// DeleteObjects accepts at most 1000 keys per request, while the listing
	// above is paginated and can return far more.
	for offset := 0; offset < len(keys); offset += s3DeleteBatchMax {
		end := offset + s3DeleteBatchMax
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[offset:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}
		_, err = s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return fmt.Errorf("failed to vacuum %s/%s: %w", s.bucket, prefix, err)
		}
	}
	log.Printf("S3Store: vacuumed %d objects under %s/%s", len(keys), s.bucket, prefix)
	return nil
}

func (s *S3Store) Close() error {
	return nil
}
