package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/retry"
)

var _ Uploader = (*S3Store)(nil)

// S3Store uploads to an S3-compatible endpoint with path-style addressing.
// Objects are assumed to be publicly readable at endpoint/bucket/key.
type S3Store struct {
	client   *s3.Client
	endpoint string
	bucket   string
	// missing is non-nil when required settings are absent; every upload
	// then fails with it.
	missing error
}

// NewS3Store builds the client from cfg. Missing settings do not fail
// construction; they surface on the first Upload.
func NewS3Store(cfg config.StorageConfig) *S3Store {
	store := &S3Store{
		endpoint: strings.TrimRight(cfg.S3Endpoint, "/"),
		bucket:   cfg.S3Bucket,
		missing: config.Require(
			"S3_ENDPOINT", cfg.S3Endpoint,
			"S3_REGION", cfg.S3Region,
			"S3_BUCKET", cfg.S3Bucket,
			"S3_ACCESS_KEY_ID", cfg.S3AccessKeyID,
			"S3_SECRET_ACCESS_KEY", cfg.S3SecretAccessKey,
		),
	}
	if store.missing != nil {
		return store
	}

	store.client = s3.New(s3.Options{
		Region:       cfg.S3Region,
		BaseEndpoint: aws.String(store.endpoint),
		UsePathStyle: true,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
	})
	return store
}

// Upload puts data at key in the configured bucket.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (StoredFile, error) {
	if s.missing != nil {
		return StoredFile{}, retry.Permanent(s.missing)
	}

	safeKey := normalizeKey(key)
	if safeKey == "" {
		return StoredFile{}, retry.Permanent(fmt.Errorf("invalid storage key %q", key))
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(safeKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return StoredFile{}, fmt.Errorf("putting s3 object %q: %w", safeKey, err)
	}

	return StoredFile{
		StorageKey: safeKey,
		PublicURL:  s.endpoint + "/" + s.bucket + "/" + safeKey,
	}, nil
}
