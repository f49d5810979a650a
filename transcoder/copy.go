package transcoder

import (
	"context"
	"fmt"
	"io"
	"os"

	"vidproc/logger"
	"vidproc/models"
)

// Copy writes input to output unchanged and ignores the profile. It lets the
// pipeline run end to end on hosts without ffmpeg.
func Copy(ctx context.Context, input, output string, _ models.TranscodeProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy %s to %s: %w", input, output, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	logger.Debugf("copied %s to %s without transcoding", input, output)
	return nil
}
