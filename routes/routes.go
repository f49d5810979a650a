// Package routes is the HTTP front end of the worker.
package routes

import (
	"net/http"

	"vidproc/metrics"
	"vidproc/pipeline"
)

// Register mounts every endpoint on mux.
func Register(mux *http.ServeMux, runner Runner, tracker *pipeline.Tracker) {
	mux.HandleFunc("/process-video", ProcessVideoHandler(runner))
	mux.HandleFunc("/status", JobStatusHandler(tracker))
	mux.HandleFunc("/success", SuccessQueryHandler)
	mux.HandleFunc("/success/list", SuccessListHandler)
	mux.HandleFunc("/failures", FailureQueryHandler)
	mux.HandleFunc("/failures/list", FailureListHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/version", VersionHandler)
	mux.Handle("/metrics", metrics.Handler())
}
