package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

const reviewQueue = "reviews"

// Worker consumes review tasks from Redis and runs them through the
// orchestrator via the configured processor.
type Worker struct {
	server    *asynq.Server
	processor func(context.Context, *ReviewTask) error

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{reviewQueue: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warnf("[Worker] Task %s failed: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{server: server}
}

func (w *Worker) SetProcessor(processor func(context.Context, *ReviewTask) error) {
	w.processor = processor
}

// Start launches the consumer loop. Calling Start on a running worker is a
// no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeReview, w.handleReviewTask)

	w.running = true
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		logger.Infof("[Worker] Consuming queue %q", reviewQueue)
		if err := w.server.Run(mux); err != nil {
			logger.Errorf("[Worker] Server stopped: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight tasks and waits for the consumer loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	logger.Infof("[Worker] Draining in-flight reviews")
	w.server.Shutdown()
	<-w.done
	w.running = false
	logger.Infof("[Worker] Stopped")
}

func (w *Worker) handleReviewTask(ctx context.Context, t *asynq.Task) error {
	var task ReviewTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("malformed review task payload: %w", err)
	}

	logger.Infof("[Worker] Processing review: run=%s, repo=%d, PR #%d",
		task.RunID, task.RepositoryID, task.PRNumber)

	if w.processor == nil {
		logger.Warnf("[Worker] No processor set, dropping run %s", task.RunID)
		return nil
	}
	return w.processor(ctx, &task)
}

var (
	globalWorker *Worker
	workerOnce   sync.Once
)

func InitWorker(cfg *config.RedisConfig) *Worker {
	workerOnce.Do(func() {
		globalWorker = NewWorker(cfg)
	})
	return globalWorker
}

func GetWorker() *Worker {
	return globalWorker
}
