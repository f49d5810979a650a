package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vidproc/logger"
	"vidproc/models"
	"vidproc/trigger"
)

// maxBodyBytes caps trigger bodies; notifications are a few hundred bytes.
const maxBodyBytes = 1 << 20

// Runner executes decoded triggers. *pipeline.Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, desc models.JobDescriptor) models.JobResult
	Convert(ctx context.Context, input, output string) error
}

// ProcessVideoHandler serves POST /process-video for both the notification
// form and the direct form. The response is written once processing ended.
func ProcessVideoHandler(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debugf("Process request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

		if r.Method != http.MethodPost {
			logger.Warnf("Invalid method for process endpoint: %s", r.Method)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.Warnf("Failed to read process request body: %v", err)
			writeText(w, http.StatusBadRequest, "Bad Request: unreadable body")
			return
		}

		req, err := trigger.Decode(raw)
		if err != nil {
			logger.Warnf("Rejected trigger: %v", err)
			if errors.Is(err, trigger.ErrMissingPath) {
				writeText(w, http.StatusBadRequest, "Bad Request: Missing file path.")
				return
			}
			writeText(w, http.StatusBadRequest, "Bad Request: "+reason(err))
			return
		}

		// A caller that hangs up does not abandon the job halfway.
		ctx := context.WithoutCancel(r.Context())

		if req.Kind == trigger.KindDirect {
			if err := runner.Convert(ctx, req.Direct.InputPath, req.Direct.OutputPath); err != nil {
				writeText(w, http.StatusInternalServerError, "Internal Server Error: "+err.Error())
				return
			}
			writeText(w, http.StatusOK, "Video processing finished successfully.")
			return
		}

		result := runner.Run(ctx, req.Descriptor)
		if result.JobID != "" {
			w.Header().Set("X-Job-ID", result.JobID)
		}
		switch result.Outcome {
		case models.OutcomeSucceeded:
			writeText(w, http.StatusOK, "Processing finished successfully.")
		case models.OutcomeBadRequest:
			writeText(w, http.StatusBadRequest, "Bad Request: "+result.Reason)
		default:
			writeText(w, http.StatusInternalServerError, "Internal Server Error: processing failed")
		}
	}
}

// reason strips the sentinel prefix so callers see only the cause.
func reason(err error) string {
	return strings.TrimPrefix(err.Error(), trigger.ErrMalformed.Error()+": ")
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}
