package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"vidproc/models"
)

func TestCompletionSettlesOnce(t *testing.T) {
	c := newCompletion()
	first := errors.New("first")

	if !c.settle(first) {
		t.Fatal("First settle should win")
	}
	if c.settle(nil) {
		t.Error("Second settle must be ignored")
	}
	if err := c.Err(); err != first {
		t.Errorf("Expected first error to stick, got %v", err)
	}
}

func TestCompletionConcurrentSettle(t *testing.T) {
	c := newCompletion()
	var wg sync.WaitGroup
	wins := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				wins <- c.settle(nil)
			} else {
				wins <- c.settle(errors.New("fail"))
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for w := range wins {
		if w {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one winning settle, got %d", count)
	}
}

func TestCompletionErrBlocksUntilSettled(t *testing.T) {
	c := newCompletion()
	got := make(chan error, 1)
	go func() { got <- c.Err() }()

	select {
	case <-got:
		t.Fatal("Err returned before the completion settled")
	case <-time.After(50 * time.Millisecond):
	}

	want := errors.New("exit status 1")
	c.settle(want)
	select {
	case err := <-got:
		if err != want {
			t.Errorf("Expected %v, got %v", want, err)
		}
	case <-time.After(time.Second):
		t.Fatal("Err did not return after settle")
	}
}

func TestFFmpegArgs(t *testing.T) {
	f := NewFFmpeg("")
	args := f.Args("in.mp4", "out.mp4", models.DefaultProfile)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-i in.mp4") {
		t.Errorf("Expected input flag, got %s", joined)
	}
	if !strings.Contains(joined, "-vf scale=-2:360") {
		t.Errorf("Expected 360p scale filter, got %s", joined)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("Expected output path last, got %s", args[len(args)-1])
	}
	if f.Bin != "ffmpeg" {
		t.Errorf("Expected default binary ffmpeg, got %s", f.Bin)
	}
}

func TestFFmpegMissingBinarySettlesAsFailure(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"))

	err := f.Transform(context.Background(), "in.mp4", "out.mp4", models.DefaultProfile)
	if err == nil {
		t.Fatal("Expected failure when the engine binary is missing")
	}
	var engErr *EngineError
	if !errors.As(err, &engErr) || engErr.Op != "start" {
		t.Errorf("Expected start EngineError, got %v", err)
	}
}

// writeScript installs a fake ffmpeg shell script.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegSuccess(t *testing.T) {
	bin := writeScript(t, "for last; do :; done\necho converted > \"$last\"\n")
	out := filepath.Join(t.TempDir(), "out.mp4")

	if err := NewFFmpeg(bin).Transform(context.Background(), "in.mp4", out, models.DefaultProfile); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "converted" {
		t.Errorf("Unexpected output content %q", data)
	}
}

func TestFFmpegFailureCarriesStderr(t *testing.T) {
	bin := writeScript(t, "echo 'progress line' >&2\necho 'in.mp4: Invalid data found' >&2\nexit 1\n")

	err := NewFFmpeg(bin).Transform(context.Background(), "in.mp4", "out.mp4", models.DefaultProfile)
	if err == nil {
		t.Fatal("Expected failure from non-zero exit")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Expected stderr tail in error, got %v", err)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tb := &tailBuffer{limit: 5}
	tb.Write([]byte("abc"))
	tb.Write([]byte("defgh"))
	if got := tb.String(); got != "defgh" {
		t.Errorf("Expected tail defgh, got %q", got)
	}
}

func TestCopyEngine(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mp4")
	out := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(in, []byte("video-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Copy(context.Background(), in, out, models.DefaultProfile); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "video-bytes" {
		t.Errorf("Unexpected copy output %q", data)
	}

	if err := Copy(context.Background(), filepath.Join(dir, "missing.mp4"), out, models.DefaultProfile); err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestRegistry(t *testing.T) {
	RegisterDefaults(filepath.Join(t.TempDir(), "definitely-missing-ffmpeg"))

	if _, ok := Get("copy"); !ok {
		t.Error("Copy engine should always be registered")
	}
	if _, err := Resolve("copy"); err != nil {
		t.Errorf("Resolve(copy) failed: %v", err)
	}
	if _, err := Resolve("does-not-exist"); err == nil {
		t.Error("Expected error resolving an unknown engine")
	}
}
