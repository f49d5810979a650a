package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"vidproc/config"
	"vidproc/failures"
	"vidproc/gateway"
	"vidproc/logger"
	"vidproc/pipeline"
	"vidproc/queue"
	"vidproc/routes"
	"vidproc/scratch"
	"vidproc/success"
	"vidproc/transcoder"
)

const (
	recordMaxAge  = 30 * 24 * time.Hour
	scratchMaxAge = 24 * time.Hour
)

func main() {
	if err := config.Load(".env"); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}

	level, err := logger.ParseLevel(config.GetLogLevel())
	if err != nil {
		logger.Warnf("%v, using info", err)
	}
	if err := logger.Init(config.GetLogFile(), true, level); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting vidproc worker initialization")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(config.GetDataDir(), 0755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	logger.Debug("Initializing failures database")
	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		logger.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer failures.Close()

	logger.Debug("Initializing success database")
	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		logger.Fatalf("Failed to initialize success store: %v", err)
	}
	defer success.Close()
	logger.Info("Outcome journals initialized successfully")

	store := scratch.New(config.GetRawVideoDir(), config.GetProcessedVideoDir())
	if err := store.EnsureDirectories(); err != nil {
		logger.Fatalf("Failed to prepare scratch directories: %v", err)
	}
	// Nothing is running yet, so every scratch file is an orphan.
	if n, err := store.Sweep(0); err != nil {
		logger.Errorf("Scratch sweep on startup incomplete: %v", err)
	} else if n > 0 {
		logger.Infof("Removed %d orphaned scratch files", n)
	}

	buckets := gateway.Buckets{
		Inbound:  config.GetRawBucket(),
		Outbound: config.GetProcessedBucket(),
	}
	gw, err := gateway.New(ctx, config.GetStorageBackend(), buckets)
	if err != nil {
		logger.Fatalf("Failed to initialize %s storage: %v", config.GetStorageBackend(), err)
	}
	if closer, ok := gw.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Infof("Storage backend %s ready (in: %s, out: %s)", config.GetStorageBackend(), buckets.Inbound, buckets.Outbound)

	transcoder.RegisterDefaults(config.GetFFmpegBin())
	engine, err := transcoder.Resolve(config.GetTranscodeEngine())
	if err != nil {
		logger.Fatalf("%v", err)
	}

	coord := pipeline.NewCoordinator(store, gw, engine)
	coord.Journal = pipeline.StoreJournal{}

	go cleanupRoutine(ctx, store, coord.Tracker)

	var consumerDone chan struct{}
	if addr := config.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatalf("Could not connect to Redis at %s: %v", addr, err)
		}
		consumer := queue.NewConsumer(client, config.GetRedisQueue(), config.GetQueueConcurrency(), coord)
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			consumer.Run(ctx)
		}()
	}

	mux := http.NewServeMux()
	routes.Register(mux, coord, coord.Tracker)

	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down, waiting for running jobs")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("HTTP shutdown: %v", err)
		}
	}()

	logger.Infof("Video processing service listening at http://localhost:%s", config.GetPort())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed to start: %v", err)
	}

	if consumerDone != nil {
		<-consumerDone
	}
	logger.Info("Stopped")
}

// cleanupRoutine trims the outcome journals, the tracker and orphaned
// scratch files once a day.
func cleanupRoutine(ctx context.Context, store *scratch.Store, tracker *pipeline.Tracker) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Cleanup routine stopped")
			return
		case <-ticker.C:
			logger.Info("Running scheduled cleanup")

			if n, err := success.CleanupOldRecords(recordMaxAge); err != nil {
				logger.Errorf("Failed to cleanup old success records: %v", err)
			} else {
				logger.Infof("Removed %d success records older than %v", n, recordMaxAge)
			}

			if n, err := failures.CleanupOldRecords(recordMaxAge); err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			} else {
				logger.Infof("Removed %d failure records older than %v", n, recordMaxAge)
			}

			if n, err := store.Sweep(scratchMaxAge); err != nil {
				logger.Errorf("Scratch sweep incomplete: %v", err)
			} else if n > 0 {
				logger.Infof("Removed %d orphaned scratch files", n)
			}

			if n := tracker.Prune(scratchMaxAge); n > 0 {
				logger.Debugf("Forgot %d finished jobs", n)
			}
		}
	}
}
