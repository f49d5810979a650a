package models

import (
	"fmt"
	"net/http"
	"strings"
)

// OutputKeyPrefix is prepended to the source key to name the published object.
const OutputKeyPrefix = "processed-"

// JobDescriptor identifies the raw video a job should process.
type JobDescriptor struct {
	SourceKey string `json:"source_key"` // object key in the inbound bucket
}

// OutputKey is the key the transcoded video is published under.
func (d JobDescriptor) OutputKey() string {
	return OutputKeyPrefix + d.SourceKey
}

// Validate reports whether the descriptor carries a usable source key.
func (d JobDescriptor) Validate() error {
	if strings.TrimSpace(d.SourceKey) == "" {
		return fmt.Errorf("missing filename")
	}
	return nil
}

// ScratchPaths are the local staging files owned by one job.
type ScratchPaths struct {
	RawPath       string
	ProcessedPath string
}

// TranscodeProfile is the output format every job is converted to.
type TranscodeProfile struct {
	Height int // target vertical resolution, width follows the aspect ratio
}

// ScaleFilter returns the ffmpeg video filter for the profile.
// -2 keeps the aspect ratio while forcing an even width, which most encoders require.
func (p TranscodeProfile) ScaleFilter() string {
	return fmt.Sprintf("scale=-2:%d", p.Height)
}

// DefaultProfile is the only output profile the worker produces.
var DefaultProfile = TranscodeProfile{Height: 360}

// Outcome is the externally visible result class of a job.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeBadRequest
	OutcomeInternal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// JobResult is what a pipeline run reports back to its trigger.
type JobResult struct {
	Outcome      Outcome
	JobID        string // empty when the job was rejected before it started
	PublishedKey string // set on success
	Reason       string // human readable, safe to return to callers
	Err          error  // full cause, for logs only
}

// StatusCode maps the outcome onto the HTTP contract of the trigger endpoint.
func (r JobResult) StatusCode() int {
	switch r.Outcome {
	case OutcomeSucceeded:
		return http.StatusOK
	case OutcomeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Succeeded builds a success result.
func Succeeded(jobID, publishedKey string) JobResult {
	return JobResult{Outcome: OutcomeSucceeded, JobID: jobID, PublishedKey: publishedKey}
}

// BadRequest builds a rejection result.
func BadRequest(reason string, err error) JobResult {
	return JobResult{Outcome: OutcomeBadRequest, Reason: reason, Err: err}
}

// Internal builds a processing failure result.
func Internal(jobID, reason string, err error) JobResult {
	return JobResult{Outcome: OutcomeInternal, JobID: jobID, Reason: reason, Err: err}
}
