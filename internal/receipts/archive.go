// Package receipts archives receipt photos to a Cloud Storage bucket so
// flagged transactions can be re-checked against the original image.
package receipts

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Archiver stores receipt images and resolves their URIs back to bytes.
// The interface enables mocking in pipeline tests.
type Archiver interface {
	// Save stores one image and returns its gs:// URI.
	Save(ctx context.Context, image []byte, mimeType string) (string, error)

	// Fetch downloads the image bytes for the given storage URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSArchiver implements Archiver on Google Cloud Storage. It assumes
// Application Default Credentials are configured.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
	now    func() time.Time
}

// NewGCSArchiver creates an archiver writing to the given bucket.
func NewGCSArchiver(ctx context.Context, bucket string, log zerolog.Logger) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket, log: log, now: time.Now}, nil
}

// Close releases the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// Save uploads the image under receipts/YYYY/MM/DD/<uuid>.<ext>.
func (a *GCSArchiver) Save(ctx context.Context, image []byte, mimeType string) (string, error) {
	objectName := fmt.Sprintf("receipts/%s/%s%s",
		a.now().Format("2006/01/02"), uuid.NewString(), extensionFor(mimeType))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write receipt to storage: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize receipt upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, objectName)
	a.log.Debug().Str("uri", uri).Int("bytes", len(image)).Msg("receipt archived")
	return uri, nil
}

// Fetch downloads the archived image for the given gs:// URI.
func (a *GCSArchiver) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read receipt %s: %w", uri, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read receipt bytes: %w", err)
	}
	return data, nil
}

func splitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid storage URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the object filename from a storage URI,
// e.g. "gs://bucket/receipts/img.jpg" becomes "img.jpg".
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
