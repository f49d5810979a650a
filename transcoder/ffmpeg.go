package transcoder

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"vidproc/logger"
	"vidproc/models"
)

const stderrTailLimit = 4 << 10

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	Bin string
}

// NewFFmpeg returns an engine running bin; an empty bin means "ffmpeg" from PATH.
func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{Bin: bin}
}

// Args builds the command line for one conversion.
func (f *FFmpeg) Args(input, output string, profile models.TranscodeProfile) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vf", profile.ScaleFilter(),
		output,
	}
}

// Start launches the conversion and returns immediately. The returned
// Completion settles exactly once: on spawn failure, on process exit, or if
// the waiting goroutine panics.
func (f *FFmpeg) Start(ctx context.Context, input, output string, profile models.TranscodeProfile) *Completion {
	c := newCompletion()

	cmd := exec.CommandContext(ctx, f.Bin, f.Args(input, output, profile)...)
	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = stderr

	logger.Debugf("Running %s", cmd.String())
	if err := cmd.Start(); err != nil {
		c.settle(&EngineError{Op: "start", Err: err})
		return c
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.settle(&EngineError{Op: "wait", Err: fmt.Errorf("panic: %v", r)})
			}
		}()
		if err := cmd.Wait(); err != nil {
			c.settle(&EngineError{Op: "run", Err: err, Stderr: stderr.String()})
			return
		}
		c.settle(nil)
	}()

	return c
}

// Transform runs the conversion and blocks until it settles.
func (f *FFmpeg) Transform(ctx context.Context, input, output string, profile models.TranscodeProfile) error {
	return f.Start(ctx, input, output, profile).Err()
}

// EngineError is the failure message of a conversion.
type EngineError struct {
	Op     string
	Err    error
	Stderr string
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("ffmpeg %s: %v", e.Op, e.Err)
	if s := lastLine(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
