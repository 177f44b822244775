package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

const TaskTypeReview = "review:pull_request"

// ReviewTask carries everything a worker needs to review one pull request
// without further database lookups.
type ReviewTask struct {
	RunID        string `json:"run_id"`
	RepositoryID uint   `json:"repository_id"`
	PRNumber     int    `json:"pr_number"`
	PRURL        string `json:"pr_url"`
	HeadSHA      string `json:"head_sha"`
	Branch       string `json:"branch"`
	Author       string `json:"author"`
	Title        string `json:"title"`
	Diff         string `json:"diff"`
}

// TaskQueue dispatches review tasks either to Redis or inline.
type TaskQueue interface {
	Enqueue(task *ReviewTask) error
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue picks the queue backend. Redis gets the async queue; when
// Redis is disabled or unreachable the sync queue is used so reviews keep
// flowing on a single node.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		globalTaskQueue = buildTaskQueue(cfg)
	})
	return globalTaskQueue
}

func buildTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Infof("[TaskQueue] Redis disabled, reviews run in-process")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis at %s unreachable (%v), reviews run in-process", cfg.Redis.Addr, err)
		return NewSyncQueue()
	}
	logger.Infof("[TaskQueue] Dispatching reviews through Redis at %s", cfg.Redis.Addr)
	return queue
}

func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue hands tasks to Redis for the worker pool to pick up.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}

	// Probe the connection up front so a dead Redis downgrades to sync mode
	// at startup instead of failing every enqueue.
	inspector := asynq.NewInspector(opt)
	_, err := inspector.Queues()
	inspector.Close()
	if err != nil {
		return nil, err
	}

	return &AsyncQueue{client: asynq.NewClient(opt)}, nil
}

func (q *AsyncQueue) Enqueue(task *ReviewTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(
		asynq.NewTask(TaskTypeReview, payload),
		asynq.Queue(reviewQueue),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Queued run %s as task %s", task.RunID, info.ID)
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue runs tasks on the local node. Each task is handled in its own
// goroutine so webhook handlers return immediately.
type SyncQueue struct {
	processor func(context.Context, *ReviewTask) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *ReviewTask) error) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *ReviewTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] No processor set, dropping run %s", task.RunID)
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Errorf("[SyncQueue] Review run %s failed: %v", task.RunID, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
