package jobs

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of work bound to a lane key. Jobs sharing a key run one at a
// time in the order they were enqueued.
type Job struct {
	ID       string
	Key      string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Queue dispatches jobs onto a fixed set of lanes. The lane is chosen by
// hashing Job.Key so every key is pinned to a single worker goroutine.
// Failed jobs are logged and never retried.
type Queue struct {
	name    string
	handler Handler

	workers    int
	bufferSize int
	logger     *zap.Logger

	lanes   []chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	lanes := make([]chan Job, cfg.Workers)
	for i := range lanes {
		lanes[i] = make(chan Job, cfg.BufferSize)
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		lanes:      lanes,
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit. Jobs still buffered are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the lane owning its key. It blocks while that lane is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	lane := q.lanes[q.LaneFor(job.Key)]
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case lane <- job:
		return nil
	}
}

// LaneFor returns the worker index that serves key.
func (q *Queue) LaneFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(q.workers))
}

// ChatKey formats a chat id as a lane key.
func ChatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (q *Queue) worker(lane int) {
	defer q.wg.Done()
	jobs := q.lanes[lane]
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-jobs:
			q.run(job)
		}
	}
}

func (q *Queue) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Sugar().Errorw("job panicked", "queue", q.name, "job_id", job.ID, "key", job.Key, "type", job.Type, "panic", r)
		}
	}()
	if err := q.handler(q.ctx, job); err != nil {
		q.logger.Sugar().Errorw("job failed", "queue", q.name, "job_id", job.ID, "key", job.Key, "type", job.Type, "error", err)
	}
}
