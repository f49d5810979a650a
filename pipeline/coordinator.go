// Package pipeline runs one video job through fetch, transcode, publish and
// cleanup.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vidproc/gateway"
	"vidproc/logger"
	"vidproc/metrics"
	"vidproc/models"
	"vidproc/scratch"
	"vidproc/transcoder"
)

// Coordinator wires the scratch store, object storage and the transcode
// engine together. Tracker and Journal are optional.
type Coordinator struct {
	Scratch *scratch.Store
	Gateway gateway.Gateway
	Engine  transcoder.Engine
	Profile models.TranscodeProfile
	Tracker *Tracker
	Journal Journal

	// NewID overrides job ID generation in tests.
	NewID func() string
}

// NewCoordinator returns a Coordinator using the default profile and an
// empty tracker.
func NewCoordinator(store *scratch.Store, gw gateway.Gateway, engine transcoder.Engine) *Coordinator {
	return &Coordinator{
		Scratch: store,
		Gateway: gw,
		Engine:  engine,
		Profile: models.DefaultProfile,
		Tracker: NewTracker(),
	}
}

func (c *Coordinator) jobID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

// Run processes desc. Invalid descriptors are rejected before anything is
// touched. Once a job has started, its scratch files are removed exactly once
// whichever stage ends it.
func (c *Coordinator) Run(ctx context.Context, desc models.JobDescriptor) models.JobResult {
	if err := desc.Validate(); err != nil {
		metrics.JobsTotal.WithLabelValues(models.OutcomeBadRequest.String()).Inc()
		logger.Warnf("Rejected job: %v", err)
		return models.BadRequest(err.Error(), fmt.Errorf("%w: %v", ErrInvalidJob, err))
	}

	jobID := c.jobID()
	log := logger.ForJob(jobID)
	paths := c.Scratch.PathsFor(jobID, desc)
	started := time.Now()

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	if c.Tracker != nil {
		if others := c.Tracker.Begin(jobID, desc); others > 0 {
			log.Warnf("%d other job(s) already processing %s; they publish to the same key", others, desc.SourceKey)
		}
	}
	log.Infof("Processing %s -> %s", desc.SourceKey, desc.OutputKey())

	err := func() error {
		defer c.cleanup(jobID, paths, log)
		return c.execute(ctx, jobID, desc, paths, log)
	}()

	if c.Tracker != nil {
		c.Tracker.Finish(jobID, err)
	}

	if err != nil {
		stage, kind := classify(err)
		log.Errorf("Job failed at %s (%s failure) after %s: %v", stage, kind, time.Since(started).Round(time.Millisecond), err)
		metrics.JobsTotal.WithLabelValues(models.OutcomeInternal.String()).Inc()
		if c.Journal != nil {
			if jerr := c.Journal.RecordFailure(jobID, desc, stage, kind, err); jerr != nil {
				log.Errorf("Failed to record failure: %v", jerr)
			}
		}
		return models.Internal(jobID, "processing failed", err)
	}

	elapsed := time.Since(started)
	log.Infof("Published %s in %s", desc.OutputKey(), elapsed.Round(time.Millisecond))
	metrics.JobsTotal.WithLabelValues(models.OutcomeSucceeded.String()).Inc()
	if c.Journal != nil {
		if jerr := c.Journal.RecordSuccess(jobID, desc, elapsed); jerr != nil {
			log.Errorf("Failed to record success: %v", jerr)
		}
	}
	return models.Succeeded(jobID, desc.OutputKey())
}

// execute runs the three external stages strictly in order.
func (c *Coordinator) execute(ctx context.Context, jobID string, desc models.JobDescriptor, paths models.ScratchPaths, log logger.JobLogger) error {
	if err := c.stage(StageFetch, func() error {
		return c.Gateway.Fetch(ctx, desc.SourceKey, paths.RawPath)
	}); err != nil {
		return err
	}
	log.Debugf("Fetched %s into %s", desc.SourceKey, paths.RawPath)

	c.advance(jobID, JobStateTranscoding)
	if err := c.stage(StageTranscode, func() error {
		return c.Engine.Transform(ctx, paths.RawPath, paths.ProcessedPath, c.Profile)
	}); err != nil {
		return err
	}
	log.Debugf("Transcoded to %s", paths.ProcessedPath)

	c.advance(jobID, JobStatePublishing)
	return c.stage(StagePublish, func() error {
		return c.Gateway.Publish(ctx, paths.ProcessedPath, desc.OutputKey())
	})
}

func (c *Coordinator) stage(name string, fn func() error) error {
	started := time.Now()
	err := fn()
	metrics.ObserveStage(name, started, err)
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (c *Coordinator) advance(jobID string, state JobState) {
	if c.Tracker != nil {
		c.Tracker.Advance(jobID, state)
	}
}

// cleanup deletes both scratch files concurrently. Absent files are fine;
// other errors are logged and counted and never change the job outcome.
func (c *Coordinator) cleanup(jobID string, paths models.ScratchPaths, log logger.JobLogger) {
	c.advance(jobID, JobStateCleaning)
	started := time.Now()

	var g errgroup.Group
	for _, path := range []string{paths.RawPath, paths.ProcessedPath} {
		path := path
		g.Go(func() error {
			if !c.Scratch.DeleteIfPresent(path) {
				return fmt.Errorf("scratch file %s left behind", path)
			}
			return nil
		})
	}
	err := g.Wait()
	metrics.ObserveStage(StageCleanup, started, err)
	if err != nil {
		log.Warnf("Cleanup incomplete: %v", err)
		return
	}
	log.Debugf("Scratch files removed")
}

// Convert runs the engine on caller supplied paths. It backs the direct
// request form: no storage round trip and no cleanup.
func (c *Coordinator) Convert(ctx context.Context, input, output string) error {
	if input == "" || output == "" {
		return fmt.Errorf("%w: missing file path", ErrInvalidJob)
	}
	started := time.Now()
	err := c.Engine.Transform(ctx, input, output, c.Profile)
	metrics.ObserveStage(StageTranscode, started, err)
	if err != nil {
		logger.Errorf("Direct conversion of %s failed: %v", input, err)
		return err
	}
	logger.Infof("Converted %s to %s", input, output)
	return nil
}
