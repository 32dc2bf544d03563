// Package gcs moves reconciliation inputs and outputs through Google Cloud
// Storage. Input exports arrive as gs:// URIs; the corrections file goes back
// up next to them.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Storage is the subset of storage operations the pipeline needs. The
// interface exists so pipeline tests can substitute an in-memory store.
type Storage interface {
	// Fetch downloads the object bytes behind a gs:// URI.
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)

	// Upload writes data to the object behind a gs:// URI.
	Upload(ctx context.Context, gcsURI string, data []byte) error
}

// Service is the Google Cloud Storage implementation of Storage. It assumes
// Application Default Credentials are configured.
type Service struct{}

// NewService creates a Service.
func NewService() *Service {
	return &Service{}
}

// IsURI reports whether a path refers to a GCS object rather than a local
// file.
func IsURI(p string) bool {
	return strings.HasPrefix(p, "gs://")
}

// Fetch downloads the object bytes behind a gs:// URI.
func (s *Service) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("gcs.Fetch: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs.Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs.Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("gcs.Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Upload writes data to the object behind a gs:// URI.
func (s *Service) Upload(ctx context.Context, gcsURI string, data []byte) error {
	bucket, object, err := splitURI(gcsURI)
	if err != nil {
		return fmt.Errorf("gcs.Upload: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("gcs.Upload: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs.Upload: writing object %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs.Upload: finalizing object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Filename extracts the object's base filename from a gs:// URI,
// e.g. "gs://bucket/folder/file.csv" -> "file.csv".
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !IsURI(gcsURI) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
