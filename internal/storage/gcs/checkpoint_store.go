// Package gcs keeps the crawl checkpoint as an object in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

// DefaultObject is the checkpoint object name used when none is configured.
const DefaultObject = "campcrawler/crawl_state.json"

// Config captures the parameters required to locate the checkpoint object.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// objectStore is the slice of the GCS client the store needs.
type objectStore interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
}

type clientAdapter struct {
	client *storage.Client
}

func (a clientAdapter) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a clientAdapter) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := a.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// CheckpointStore reads and writes the cursor document as one object. GCS
// object writes become visible only when the writer closes successfully, so
// a failed save leaves the previous cursor in place.
type CheckpointStore struct {
	objects objectStore
	bucket  string
	object  string
}

// New creates a GCS-backed checkpoint store.
func New(client *storage.Client, cfg Config) (*CheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return newStore(clientAdapter{client: client}, cfg)
}

func newStore(objects objectStore, cfg Config) (*CheckpointStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := strings.TrimPrefix(strings.TrimSpace(cfg.Object), "/")
	if object == "" {
		object = DefaultObject
	}
	return &CheckpointStore{objects: objects, bucket: cfg.Bucket, object: object}, nil
}

// URI is the gs:// location of the checkpoint object.
func (s *CheckpointStore) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Load reads the cursor; a missing object yields the default cursor.
func (s *CheckpointStore) Load(ctx context.Context) (crawler.Cursor, error) {
	r, err := s.objects.NewReader(ctx, s.bucket, s.object)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return crawler.DefaultCursor(), nil
	}
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("open %s: %w", s.URI(), err)
	}
	defer func() {
		_ = r.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("read %s: %w", s.URI(), err)
	}
	cursor, err := crawler.DecodeCursor(raw)
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("%s: %w", s.URI(), err)
	}
	return cursor, nil
}

// Save uploads the cursor document, replacing the previous one.
func (s *CheckpointStore) Save(ctx context.Context, cursor crawler.Cursor) error {
	raw, err := crawler.EncodeCursor(cursor)
	if err != nil {
		return err
	}
	writer := s.objects.NewWriter(ctx, s.bucket, s.object, "application/json")
	if _, err := writer.Write(raw); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
