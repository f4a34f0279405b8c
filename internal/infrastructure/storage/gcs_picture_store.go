package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// PictureStore uploads profile pictures into a GCS bucket.
type PictureStore struct {
	Client *gcs.Client
	Bucket string

	// newWriter replaces the GCS object writer in tests.
	newWriter func(ctx context.Context, objectPath, contentType string) io.WriteCloser
}

func NewPictureStore(client *gcs.Client, bucket string) *PictureStore {
	return &PictureStore{Client: client, Bucket: bucket}
}

// Upload streams r into bucket/objectPath and returns the object's public URL.
// A failed read aborts the upload so no partial object is left behind.
func (s *PictureStore) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wc := s.writer(ctx, objectPath, contentType)
	if _, err := io.Copy(wc, r); err != nil {
		// GCS discards the object when the writer's context ends before Close.
		cancel()
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return PublicURL(s.Bucket, objectPath), nil
}

func (s *PictureStore) writer(ctx context.Context, objectPath, contentType string) io.WriteCloser {
	if s.newWriter != nil {
		return s.newWriter(ctx, objectPath, contentType)
	}
	wc := s.Client.Bucket(s.Bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // single request; pictures are small
	return wc
}

// PublicURL builds the public URL of an object in a publicly readable bucket.
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
