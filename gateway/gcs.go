package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"vidproc/logger"
)

// GCS talks to Google Cloud Storage.
type GCS struct {
	client  *storage.Client
	buckets Buckets
}

// NewGCS creates a client. With no options the application default
// credentials are used.
func NewGCS(ctx context.Context, buckets Buckets, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCS{client: client, buckets: buckets}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Fetch(ctx context.Context, key, localPath string) error {
	obj := g.client.Bucket(g.buckets.Inbound).Object(key)

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("gs://%s/%s: %w", g.buckets.Inbound, key, ErrNotFound)
		}
		return fmt.Errorf("open gs://%s/%s: %w", g.buckets.Inbound, key, err)
	}
	defer r.Close()

	err = writeLocal(localPath, func(w io.Writer) error {
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("download gs://%s/%s: %w", g.buckets.Inbound, key, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Infof("Downloaded gs://%s/%s to %s", g.buckets.Inbound, key, localPath)
	return nil
}

func (g *GCS) Publish(ctx context.Context, localPath, key string) error {
	bucket := g.buckets.Outbound
	obj := g.client.Bucket(bucket).Object(key)

	if err := g.upload(ctx, obj, localPath); err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return &PublishError{Step: StepVisibility, Bucket: bucket, Key: key, Err: err}
	}

	logger.Infof("Published %s to gs://%s/%s (public)", localPath, bucket, key)
	return nil
}

func (g *GCS) upload(ctx context.Context, obj *storage.ObjectHandle, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	wc := obj.NewWriter(ctx)
	wc.ContentType = contentTypeFor(localPath)

	if _, err := io.Copy(wc, f); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	// The object only exists once the writer is closed.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}
	return nil
}
