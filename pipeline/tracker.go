package pipeline

import (
	"sort"
	"sync"
	"time"

	"vidproc/models"
)

// JobState is where a job currently is inside the pipeline.
type JobState int

const (
	JobStateFetching JobState = iota
	JobStateTranscoding
	JobStatePublishing
	JobStateCleaning
	JobStateSucceeded
	JobStateFailed
)

func (s JobState) String() string {
	switch s {
	case JobStateFetching:
		return "fetching"
	case JobStateTranscoding:
		return "transcoding"
	case JobStatePublishing:
		return "publishing"
	case JobStateCleaning:
		return "cleaning"
	case JobStateSucceeded:
		return "succeeded"
	case JobStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the job has concluded.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// JobStatus is a snapshot of one tracked job.
type JobStatus struct {
	JobID     string    `json:"job_id"`
	SourceKey string    `json:"source_key"`
	State     JobState  `json:"-"`
	StateName string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker keeps the state of jobs started by this process. It is memory only
// and is lost on restart.
type Tracker struct {
	mu       sync.RWMutex
	jobs     map[string]*JobStatus
	inFlight map[string]int // source key -> running jobs
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs:     make(map[string]*JobStatus),
		inFlight: make(map[string]int),
	}
}

// Begin registers a job in the fetching state. It returns the number of other
// jobs already running for the same source key; such jobs race on the same
// outbound object.
func (t *Tracker) Begin(jobID string, desc models.JobDescriptor) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.jobs[jobID] = &JobStatus{
		JobID:     jobID,
		SourceKey: desc.SourceKey,
		State:     JobStateFetching,
		StartedAt: now,
		UpdatedAt: now,
	}
	others := t.inFlight[desc.SourceKey]
	t.inFlight[desc.SourceKey] = others + 1
	return others
}

// Advance moves a running job to state. Unknown or finished jobs are ignored.
func (t *Tracker) Advance(jobID string, state JobState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok || job.State.Terminal() {
		return
	}
	job.State = state
	job.UpdatedAt = time.Now()
}

// Finish marks a job succeeded, or failed when err is not nil.
func (t *Tracker) Finish(jobID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok || job.State.Terminal() {
		return
	}
	job.State = JobStateSucceeded
	if err != nil {
		job.State = JobStateFailed
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()

	if n := t.inFlight[job.SourceKey]; n <= 1 {
		delete(t.inFlight, job.SourceKey)
	} else {
		t.inFlight[job.SourceKey] = n - 1
	}
}

// Get returns a copy of the job's status.
func (t *Tracker) Get(jobID string) (JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	snapshot := *job
	snapshot.StateName = job.State.String()
	return snapshot, true
}

// Running returns the jobs that have not finished, oldest first.
func (t *Tracker) Running() []JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	running := []JobStatus{}
	for _, job := range t.jobs {
		if job.State.Terminal() {
			continue
		}
		snapshot := *job
		snapshot.StateName = job.State.String()
		running = append(running, snapshot)
	}
	sort.Slice(running, func(i, j int) bool {
		return running[i].StartedAt.Before(running[j].StartedAt)
	})
	return running
}

// Prune forgets finished jobs last updated more than maxAge ago.
func (t *Tracker) Prune(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range t.jobs {
		if job.State.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}
