package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ReadObject streams a whole GCS object into memory. limit guards against
// oversized artifacts; pass 0 for no limit.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string, limit int64) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	var r io.Reader = reader
	if limit > 0 {
		r = io.LimitReader(reader, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("object gs://%s/%s exceeds the %d byte limit", bucket, object, limit)
	}
	return data, nil
}

// UploadSigner mints short-lived V4 signed PUT URLs so clients can write
// artifacts directly to the upload bucket.
type UploadSigner struct {
	bucket *storage.BucketHandle
	ttl    time.Duration
}

// NewUploadSigner returns a signer for the given bucket. ttl defaults to
// fifteen minutes when zero.
func NewUploadSigner(client *storage.Client, bucket string, ttl time.Duration) *UploadSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &UploadSigner{bucket: client.Bucket(bucket), ttl: ttl}
}

// SignedUploadURL returns a one-shot PUT URL for the given object along with
// its expiry time. The content type is baked into the signature so the client
// cannot upload under a different one.
func (s *UploadSigner) SignedUploadURL(object, contentType string) (string, time.Time, error) {
	expires := time.Now().Add(s.ttl)
	url, err := s.bucket.SignedURL(object, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     expires,
		ContentType: contentType,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign upload URL for %s: %w", object, err)
	}
	return url, expires, nil
}
