package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vidproc/logger"
)

// Local keeps each bucket as a directory under Root. It backs development
// runs and tests without cloud credentials.
type Local struct {
	Root    string
	buckets Buckets
}

// NewLocal creates the bucket directories under root.
func NewLocal(root string, buckets Buckets) (*Local, error) {
	for _, b := range []string{buckets.Inbound, buckets.Outbound} {
		if err := os.MkdirAll(filepath.Join(root, b), 0755); err != nil {
			return nil, fmt.Errorf("failed to create bucket directory %s: %w", b, err)
		}
	}
	return &Local{Root: root, buckets: buckets}, nil
}

// ObjectPath resolves a bucket key to a file path. Keys that would leave the
// bucket directory are rejected.
func (l *Local) ObjectPath(bucket, key string) (string, error) {
	base := filepath.Join(l.Root, bucket)
	full := filepath.Join(base, filepath.FromSlash(key))
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes bucket %s", key, bucket)
	}
	return full, nil
}

func (l *Local) Fetch(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.ObjectPath(l.buckets.Inbound, key)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", l.buckets.Inbound, key, ErrNotFound)
		}
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	err = writeLocal(localPath, func(w io.Writer) error {
		if _, err := io.Copy(w, in); err != nil {
			return fmt.Errorf("failed to copy %s: %w", src, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Infof("Fetched %s to %s", src, localPath)
	return nil
}

func (l *Local) Publish(ctx context.Context, localPath, key string) error {
	bucket := l.buckets.Outbound
	if err := ctx.Err(); err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}

	dst, err := l.ObjectPath(bucket, key)
	if err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}
	if err := copyFile(localPath, dst); err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}
	if err := os.Chmod(dst, 0644); err != nil {
		return &PublishError{Step: StepVisibility, Bucket: bucket, Key: key, Err: err}
	}

	logger.Infof("Published %s to %s", localPath, dst)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return writeLocal(dst, func(w io.Writer) error {
		if _, err := io.Copy(w, in); err != nil {
			return fmt.Errorf("failed to write to file %s: %w", dst, err)
		}
		return nil
	})
}
