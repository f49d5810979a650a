// Package gateway moves videos between local scratch files and the two fixed
// object storage buckets.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is wrapped by Fetch when the inbound object does not exist.
var ErrNotFound = errors.New("object not found")

// Buckets names the inbound (raw) and outbound (processed) buckets. They are
// fixed at construction and never derived from a job payload.
type Buckets struct {
	Inbound  string
	Outbound string
}

// Gateway is the object storage capability the pipeline depends on.
type Gateway interface {
	// Fetch copies the inbound object key into localPath.
	Fetch(ctx context.Context, key, localPath string) error
	// Publish uploads localPath to the outbound bucket under key, then makes
	// it publicly readable. Visibility is only set after the upload completed.
	Publish(ctx context.Context, localPath, key string) error
}

// Publish steps.
const (
	StepUpload     = "upload"
	StepVisibility = "visibility"
)

// PublishError tells an upload failure apart from a visibility failure.
type PublishError struct {
	Step   string
	Bucket string
	Key    string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s/%s failed at %s: %v", e.Bucket, e.Key, e.Step, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// writeLocal creates localPath and fills it from fill. A partially written
// file is left in place for the caller's cleanup.
func writeLocal(localPath string, fill func(w io.Writer) error) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", localPath, err)
	}
	return nil
}
