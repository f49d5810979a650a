package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidJob wraps every validation failure. Invalid jobs cause no side effects.
var ErrInvalidJob = errors.New("invalid job")

// Pipeline stages, in the order they run.
const (
	StageFetch     = "fetch"
	StageTranscode = "transcode"
	StagePublish   = "publish"
	StageCleanup   = "cleanup"
)

// FailureKind classifies a failed stage for logs and the failure journal.
// Callers of Run only ever see the outcome.
type FailureKind int

const (
	UpstreamFailure FailureKind = iota
	TranscodeFailure
)

func (k FailureKind) String() string {
	switch k {
	case UpstreamFailure:
		return "upstream"
	case TranscodeFailure:
		return "transcode"
	default:
		return "unknown"
	}
}

// StageError records which stage stopped a job.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Kind maps the stage onto the failure taxonomy.
func (e *StageError) Kind() FailureKind {
	if e.Stage == StageTranscode {
		return TranscodeFailure
	}
	return UpstreamFailure
}

// classify returns the stage and failure kind recorded in err, or empty
// strings when err carries no stage.
func classify(err error) (stage, kind string) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, se.Kind().String()
	}
	return "", ""
}
