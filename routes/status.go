package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"vidproc/failures"
	"vidproc/logger"
	"vidproc/pipeline"
	"vidproc/success"
)

// JobStatusResponse represents the job status response
type JobStatusResponse struct {
	JobID        string `json:"job_id"`
	State        string `json:"state"`
	SourceKey    string `json:"source_key,omitempty"`
	PublishedKey string `json:"published_key,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RunningJobsResponse lists the jobs this process has not finished yet
type RunningJobsResponse struct {
	Running []pipeline.JobStatus `json:"running"`
	Count   int                  `json:"count"`
}

// JobStatusHandler looks a job up in the in-memory tracker first, then in
// the outcome journals for jobs from earlier runs. Without a job parameter
// it lists the jobs still in flight.
func JobStatusHandler(tracker *pipeline.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debugf("Job status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

		if r.Method != http.MethodGet {
			logger.Warnf("Invalid method for status endpoint: %s", r.Method)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		jobID := r.URL.Query().Get("job")
		if jobID == "" {
			running := []pipeline.JobStatus{}
			if tracker != nil {
				running = tracker.Running()
			}
			writeJSON(w, http.StatusOK, RunningJobsResponse{Running: running, Count: len(running)})
			return
		}

		response, found, err := lookupStatus(tracker, jobID)
		if err != nil {
			logger.Errorf("Failed to look up job %s: %v", jobID, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !found {
			logger.Debugf("Job not found: %s", jobID)
			http.Error(w, fmt.Sprintf("Job %s not found", jobID), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func lookupStatus(tracker *pipeline.Tracker, jobID string) (JobStatusResponse, bool, error) {
	if tracker != nil {
		if status, ok := tracker.Get(jobID); ok {
			return JobStatusResponse{
				JobID:     jobID,
				State:     status.StateName,
				SourceKey: status.SourceKey,
				Error:     status.Error,
			}, true, nil
		}
	}

	if success.Enabled() {
		record, err := success.GetSuccess(jobID)
		if err != nil {
			return JobStatusResponse{}, false, err
		}
		if record != nil {
			return JobStatusResponse{
				JobID:        jobID,
				State:        pipeline.JobStateSucceeded.String(),
				SourceKey:    record.SourceKey,
				PublishedKey: record.PublishedKey,
			}, true, nil
		}
	}

	if failures.Enabled() {
		record, err := failures.GetFailure(jobID)
		if err != nil {
			return JobStatusResponse{}, false, err
		}
		if record != nil {
			return JobStatusResponse{
				JobID:     jobID,
				State:     pipeline.JobStateFailed.String(),
				SourceKey: record.SourceKey,
				Stage:     record.Stage,
				Kind:      record.Kind,
				Error:     record.Error,
			}, true, nil
		}
	}

	return JobStatusResponse{}, false, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
