// Package scratch manages the two local staging directories a job uses while
// its video moves between object storage and the transcoder.
package scratch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"vidproc/logger"
	"vidproc/metrics"
	"vidproc/models"
)

// Store owns the raw and processed staging directories.
type Store struct {
	RawDir       string
	ProcessedDir string
}

// New returns a Store rooted at the given directories.
func New(rawDir, processedDir string) *Store {
	return &Store{RawDir: rawDir, ProcessedDir: processedDir}
}

// EnsureDirectories creates both staging directories, including parents.
// Safe to call more than once.
func (s *Store) EnsureDirectories() error {
	for _, dir := range []string{s.RawDir, s.ProcessedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
		}
	}
	return nil
}

// keyHashLen is the number of hex characters of the key digest kept in a name.
const keyHashLen = 16

// maxExtLen bounds the extension copied from the key.
const maxExtLen = 10

// FileName builds the staging filename for an object key within one job.
// The name is the job ID, a digest of the key and the key's extension, so it
// is a single short path element whatever the key looks like. The extension
// is kept because ffmpeg picks the output muxer from it.
func FileName(jobID, key string) string {
	sum := sha256.Sum256([]byte(key))
	return jobID + "_" + hex.EncodeToString(sum[:])[:keyHashLen] + extension(key)
}

// extension returns the key's extension when it is short and alphanumeric.
func extension(key string) string {
	ext := path.Ext(key)
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// PathsFor returns the staging files for a job.
func (s *Store) PathsFor(jobID string, desc models.JobDescriptor) models.ScratchPaths {
	return models.ScratchPaths{
		RawPath:       filepath.Join(s.RawDir, FileName(jobID, desc.SourceKey)),
		ProcessedPath: filepath.Join(s.ProcessedDir, FileName(jobID, desc.OutputKey())),
	}
}

// Remove deletes path. A path that does not exist counts as removed.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to delete scratch file %s: %w", path, err)
}

// DeleteIfPresent removes path and never fails the caller; problems are
// logged and counted. It reports whether the path is gone.
func (s *Store) DeleteIfPresent(path string) bool {
	if err := s.Remove(path); err != nil {
		metrics.CleanupFailures.Inc()
		logger.Errorf("%v", err)
		return false
	}
	logger.Debugf("Scratch file %s cleared", path)
	return true
}

// Sweep deletes staging files last modified before olderThan ago. Files left
// behind by a crashed process are otherwise never reclaimed.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error

	for _, dir := range []string{s.RawDir, s.ProcessedDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("failed to read scratch directory %s: %w", dir, err))
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue // removed underneath us
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := s.Remove(filepath.Join(dir, entry.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}

	return removed, errors.Join(errs...)
}
