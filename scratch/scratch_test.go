package scratch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidproc/models"
	"vidproc/scratch"
)

func newStore(t *testing.T) *scratch.Store {
	t.Helper()
	root := t.TempDir()
	return scratch.New(filepath.Join(root, "nested", "raw-videos"), filepath.Join(root, "nested", "processed-videos"))
}

func TestEnsureDirectoriesIsIdempotent(t *testing.T) {
	s := newStore(t)

	for i := 0; i < 2; i++ {
		if err := s.EnsureDirectories(); err != nil {
			t.Fatalf("EnsureDirectories call %d failed: %v", i+1, err)
		}
	}

	for _, dir := range []string{s.RawDir, s.ProcessedDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("Expected %s to be a directory", dir)
		}
	}
}

func TestPathsFor(t *testing.T) {
	s := newStore(t)
	desc := models.JobDescriptor{SourceKey: "clip1.mp4"}

	paths := s.PathsFor("job1", desc)

	if filepath.Dir(paths.RawPath) != s.RawDir {
		t.Errorf("Expected raw path inside %s, got %s", s.RawDir, paths.RawPath)
	}
	if filepath.Dir(paths.ProcessedPath) != s.ProcessedDir {
		t.Errorf("Expected processed path inside %s, got %s", s.ProcessedDir, paths.ProcessedPath)
	}
	for _, p := range []string{paths.RawPath, paths.ProcessedPath} {
		name := filepath.Base(p)
		if !strings.HasPrefix(name, "job1_") || filepath.Ext(name) != ".mp4" {
			t.Errorf("Expected job prefix and .mp4 extension, got %s", name)
		}
	}
	if filepath.Base(paths.RawPath) == filepath.Base(paths.ProcessedPath) {
		t.Error("Raw and processed names must differ")
	}
}

func TestFileNameLongMultibyteKey(t *testing.T) {
	key := strings.Repeat("動", 60) + ".mp4"
	name := scratch.FileName("0b5c4c1e-3f7e-4a53-9d62-8c1c8a0d2f11", models.OutputKeyPrefix+key)

	if len(name) > 64 {
		t.Errorf("Expected a short name, got %d bytes: %s", len(name), name)
	}
	if filepath.Ext(name) != ".mp4" {
		t.Errorf("Expected .mp4 extension, got %s", name)
	}

	s := newStore(t)
	if err := s.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	paths := s.PathsFor("job", models.JobDescriptor{SourceKey: key})
	if err := os.WriteFile(paths.RawPath, []byte("x"), 0644); err != nil {
		t.Fatalf("Scratch file for a long key could not be created: %v", err)
	}
	if !s.DeleteIfPresent(paths.RawPath) {
		t.Error("Expected scratch file to be removed")
	}
}

func TestFileNameDropsUnusableExtension(t *testing.T) {
	for _, key := range []string{"noext", "a.b/c", "clip.mp4?x=1", "clip." + strings.Repeat("x", 20), ".."} {
		name := scratch.FileName("j", key)
		if strings.ContainsAny(name, "/?.") {
			t.Errorf("Key %q produced unexpected name %s", key, name)
		}
	}
}

func TestPathsForStayInsideScratchRoot(t *testing.T) {
	s := newStore(t)

	for _, key := range []string{"../../etc/passwd", "uploads/2024/clip.mp4", "..", "/abs/clip.mp4"} {
		paths := s.PathsFor("job", models.JobDescriptor{SourceKey: key})

		if filepath.Dir(paths.RawPath) != filepath.Clean(s.RawDir) {
			t.Errorf("Key %q escaped raw dir: %s", key, paths.RawPath)
		}
		if filepath.Dir(paths.ProcessedPath) != filepath.Clean(s.ProcessedDir) {
			t.Errorf("Key %q escaped processed dir: %s", key, paths.ProcessedPath)
		}
	}
}

func TestFileNameSeparatesJobs(t *testing.T) {
	a := scratch.FileName("job-a", "clip.mp4")
	b := scratch.FileName("job-b", "clip.mp4")
	if a == b {
		t.Errorf("Expected distinct scratch names for distinct jobs, both were %s", a)
	}
	if strings.Contains(scratch.FileName("j", "a/b"), "/") {
		t.Error("Scratch name must not contain a path separator")
	}
}

func TestRemoveMissingFileIsNotAnError(t *testing.T) {
	s := newStore(t)
	if err := s.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	missing := filepath.Join(s.RawDir, "never-created.mp4")
	if err := s.Remove(missing); err != nil {
		t.Errorf("Removing an absent file should succeed, got %v", err)
	}

	if !s.DeleteIfPresent(missing) {
		t.Error("DeleteIfPresent should report an absent file as gone")
	}
}

func TestRemoveDeletesFile(t *testing.T) {
	s := newStore(t)
	if err := s.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(s.ProcessedDir, "out.mp4")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if !s.DeleteIfPresent(path) {
		t.Error("DeleteIfPresent reported failure")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed, stat err = %v", path, err)
	}
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	s := newStore(t)
	if err := s.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	stale := filepath.Join(s.RawDir, "stale.mp4")
	fresh := filepath.Join(s.ProcessedDir, "fresh.mp4")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Sweep(24 * time.Hour)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Stale file should have been removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Fresh file should remain: %v", err)
	}
}

func TestSweepToleratesMissingDirectories(t *testing.T) {
	s := newStore(t) // directories never created

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Errorf("Sweep over missing directories should not fail: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected nothing removed, got %d", removed)
	}
}
