// Package queue feeds job notifications pushed onto a Redis list into the
// pipeline.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vidproc/logger"
	"vidproc/metrics"
	"vidproc/models"
	"vidproc/trigger"
)

// Runner executes one job. *pipeline.Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, desc models.JobDescriptor) models.JobResult
}

// Consumer pops messages with BRPOP and runs up to Concurrency jobs at once.
// Messages are not retried: a job that fails is logged and dropped.
type Consumer struct {
	client *redis.Client
	queue  string
	runner Runner
	sem    chan struct{}
	wg     sync.WaitGroup

	// PollTimeout bounds each BRPOP so shutdown is noticed.
	PollTimeout time.Duration
	// RetryDelay is the pause after a failed BRPOP.
	RetryDelay time.Duration
}

// NewConsumer returns a consumer for the list named queue.
func NewConsumer(client *redis.Client, queue string, concurrency int, runner Runner) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		client:      client,
		queue:       queue,
		runner:      runner,
		sem:         make(chan struct{}, concurrency),
		PollTimeout: 5 * time.Second,
		RetryDelay:  time.Second,
	}
}

// Run consumes until ctx is cancelled, then waits for running jobs. The
// message is already off the list once popped, so cancelling ctx only stops
// popping; jobs in progress run to completion.
func (c *Consumer) Run(ctx context.Context) {
	logger.Infof("Queue consumer listening on %s (concurrency %d)", c.queue, cap(c.sem))
	defer c.wg.Wait()

	jobCtx := context.WithoutCancel(ctx)

	for {
		// Take a slot before popping so a message is never held while all
		// workers are busy.
		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			logger.Info("Queue consumer stopped")
			return
		}

		vals, err := c.client.BRPop(ctx, c.PollTimeout, c.queue).Result()
		if err != nil {
			<-c.sem
			if ctx.Err() != nil {
				logger.Info("Queue consumer stopped")
				return
			}
			if errors.Is(err, redis.Nil) {
				continue // poll timeout
			}
			logger.Errorf("BRPOP on %s failed: %v", c.queue, err)
			select {
			case <-time.After(c.RetryDelay):
			case <-ctx.Done():
			}
			continue
		}

		// vals is [key, value].
		payload := vals[1]
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer func() { <-c.sem }()
			c.handle(jobCtx, payload)
		}()
	}
}

// handle decodes one payload and runs it. It reports whether a job ran.
func (c *Consumer) handle(ctx context.Context, payload string) bool {
	desc, err := trigger.DecodeQueueMessage([]byte(payload))
	if err != nil {
		metrics.QueueMessages.WithLabelValues("malformed").Inc()
		logger.Warnf("Dropping malformed queue message: %v", err)
		return false
	}
	metrics.QueueMessages.WithLabelValues("accepted").Inc()

	result := c.runner.Run(ctx, desc)
	switch result.Outcome {
	case models.OutcomeSucceeded:
		logger.Infof("Queued job %s published %s", result.JobID, result.PublishedKey)
	case models.OutcomeBadRequest:
		logger.Warnf("Queued job for %q rejected: %s", desc.SourceKey, result.Reason)
	default:
		logger.Errorf("Queued job %s for %q failed: %v", result.JobID, desc.SourceKey, result.Err)
	}
	return true
}
