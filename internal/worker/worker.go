package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/internal/worldgen"
	queuePkg "github.com/jubensha-labs/mystery-engine/pkg/queue"
)

const (
	dequeueTimeout = 5 * time.Second

	// Full generation makes several model calls in sequence.
	processTimeout = 10 * time.Minute
	gameLockTTL    = 12 * time.Minute
)

// Worker processes world-generation requests from the queue. A per-game
// lock keeps two workers from regenerating the same game concurrently.
type Worker struct {
	id          string
	queue       *queue.GenerationQueue
	pipeline    *worldgen.Service
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(genQueue *queue.GenerationQueue, pipeline *worldgen.Service, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       genQueue,
		pipeline:    pipeline,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, dequeueTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty - this is normal
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"game_id", req.GameID)

	locked, err := w.acquireGameLock(req.GameID)
	if err != nil {
		return fmt.Errorf("failed to acquire game lock: %w", err)
	}
	if !locked {
		// Another worker is regenerating this game. Re-queue at the end
		// and try the next request.
		w.log.Info("Game already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"game_id", req.GameID)
		if err := w.queue.Enqueue(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	defer w.releaseGameLock(req.GameID)
	return w.processRequest(req)
}

// acquireGameLock attempts to acquire a lock for a game.
// Returns true if lock was acquired, false if already locked.
func (w *Worker) acquireGameLock(gameID int64) (bool, error) {
	lockKey := fmt.Sprintf("game-lock:%d", gameID)
	return w.redisClient.SetNX(w.ctx, lockKey, w.id, gameLockTTL).Result()
}

// releaseGameLock releases the lock for a game
func (w *Worker) releaseGameLock(gameID int64) {
	lockKey := fmt.Sprintf("game-lock:%d", gameID)

	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{lockKey}, w.id).Err(); err != nil {
		w.log.Error("Failed to release game lock", "error", err, "game_id", gameID)
	}
}

// processRequest runs the requested generation. Failures are logged and
// dropped; there are no retries.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(w.ctx, processTimeout)
	defer cancel()

	switch req.Type {
	case queuePkg.RequestTypeGenerateFull:
		_, err := w.pipeline.GenerateFull(ctx, req.GameID, req.Params)
		if err != nil {
			w.log.Error("Full generation failed",
				"worker_id", w.id,
				"request_id", req.RequestID,
				"game_id", req.GameID,
				"error", err)
			return nil
		}
	case queuePkg.RequestTypeGenerateRoles:
		_, err := w.pipeline.GenerateRoles(ctx, req.GameID, req.Params)
		if err != nil {
			w.log.Error("Role generation failed",
				"worker_id", w.id,
				"request_id", req.RequestID,
				"game_id", req.GameID,
				"error", err)
			return nil
		}
	default:
		return fmt.Errorf("unknown request type: %s", req.Type)
	}

	w.log.Info("Generation request processed",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"game_id", req.GameID,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
