package illustration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/ashureev/bpb-coach/internal/media"
)

// GCSAssetStore publishes generated illustrations to a Cloud Storage bucket.
type GCSAssetStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSAssetStore creates an asset store. baseURL, when set, replaces the
// raw storage.googleapis.com host in returned URLs.
func NewGCSAssetStore(ctx context.Context, bucket, baseURL string) (*GCSAssetStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSAssetStore{client: client, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put uploads img under a name derived from token and returns its URL.
func (s *GCSAssetStore) Put(ctx context.Context, token string, img media.Image) (string, error) {
	objectPath := ObjectPath(token, img.MIMEType)

	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = img.MIMEType
	writer.CacheControl = "public, max-age=31536000, immutable"

	if _, err := bytes.NewReader(img.Data).WriteTo(writer); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, objectPath), nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectPath), nil
}

// Close releases the storage client.
func (s *GCSAssetStore) Close() error {
	return s.client.Close()
}

// ObjectPath is the deterministic object name for an exercise image.
func ObjectPath(token, mimeType string) string {
	sum := sha256.Sum256([]byte(token))
	ext := ".png"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return "illustrations/" + hex.EncodeToString(sum[:8]) + ext
}
