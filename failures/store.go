package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"vidproc/models"
)

// FailureRecord represents a job that ended with an internal error
type FailureRecord struct {
	JobID     string    `json:"job_id"`
	SourceKey string    `json:"source_key"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind,omitempty"` // upstream or transcode
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

var db *pebble.DB

// Init initializes the failure journal
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	return nil
}

// Close closes the failure journal
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Enabled reports whether Init has been called
func Enabled() bool {
	return db != nil
}

// StoreFailure records the stage a job failed in, the kind of failure and why
func StoreFailure(jobID string, desc models.JobDescriptor, stage, kind string, cause error) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	record := FailureRecord{
		JobID:     jobID,
		SourceKey: desc.SourceKey,
		Stage:     stage,
		Kind:      kind,
		Error:     msg,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	return db.Set([]byte(jobID), data, pebble.Sync)
}

// GetFailure retrieves a failure record by job ID; nil when there is none
func GetFailure(jobID string) (*FailureRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	data, closer, err := db.Get([]byte(jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	defer closer.Close()

	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(jobID string) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}
	return db.Delete([]byte(jobID), pebble.Sync)
}

// ListFailures returns all failure records (for admin purposes)
func ListFailures() ([]FailureRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	failures := []FailureRecord{}
	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // Skip invalid records
		}
		failures = append(failures, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return failures, nil
}

// CleanupOldRecords removes failure records older than maxAge
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("failure store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	batch := db.NewBatch()
	defer batch.Close()

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to create iterator: %w", err)
	}
	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			if err := batch.Delete(iter.Key(), nil); err != nil {
				iter.Close()
				return 0, err
			}
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to delete old failure records: %w", err)
	}
	return count, nil
}
