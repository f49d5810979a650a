package pipeline

import (
	"time"

	"vidproc/failures"
	"vidproc/models"
	"vidproc/success"
)

// Journal records how jobs ended. Records are for inspection only.
type Journal interface {
	RecordSuccess(jobID string, desc models.JobDescriptor, elapsed time.Duration) error
	RecordFailure(jobID string, desc models.JobDescriptor, stage, kind string, err error) error
}

// StoreJournal writes to the success and failures pebble stores. A store that
// was never initialized is skipped.
type StoreJournal struct{}

func (StoreJournal) RecordSuccess(jobID string, desc models.JobDescriptor, elapsed time.Duration) error {
	if !success.Enabled() {
		return nil
	}
	return success.StoreSuccess(jobID, desc, elapsed)
}

func (StoreJournal) RecordFailure(jobID string, desc models.JobDescriptor, stage, kind string, err error) error {
	if !failures.Enabled() {
		return nil
	}
	return failures.StoreFailure(jobID, desc, stage, kind, err)
}
