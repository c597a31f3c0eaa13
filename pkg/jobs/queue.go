package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background work. Payload is opaque to the queue; the
// handler owns the type assertion.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler consumes a single job. A non-nil error triggers a retry until
// the attempt budget is spent.
type Handler func(ctx context.Context, job Job) error

// QueueConfig tunes the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func (c *QueueConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Queue dispatches jobs to a fixed pool of goroutines over a buffered
// channel. It has no persistence: anything still buffered when the process
// exits is lost, and callers must treat enqueued work as best-effort.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig

	inbox  chan Job
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	wg      sync.WaitGroup
	running bool
}

// NewQueue builds an idle queue. Call Start before Enqueue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg.applyDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		inbox:   make(chan Job, cfg.BufferSize),
	}
}

// Start launches the worker pool. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.consume()
	}
	q.cfg.Logger.Sugar().Infow("job queue started", "queue", q.name, "workers", q.cfg.Workers)
}

// Stop signals the workers and blocks until they drain out.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Sugar().Infow("job queue stopped", "queue", q.name)
}

// Enqueue hands a job to the pool. It blocks while the buffer is full and
// fails once the queue is stopped or was never started.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	running, ctx := q.running, q.ctx
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %q is not running", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.inbox <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %q shutting down: %w", q.name, ctx.Err())
	}
}

func (q *Queue) consume() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.inbox:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	log := q.cfg.Logger.Sugar()
	if job.Attempt > q.cfg.MaxRetries {
		log.Errorw("job dropped after exhausting retries",
			"queue", q.name, "job_id", job.ID, "type", job.Type, "error", cause)
		return
	}
	log.Warnw("job failed, scheduling retry",
		"queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", cause)

	// Requeue off-worker so a failing job never stalls the pool.
	go func() {
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				log.Errorw("retry enqueue failed", "queue", q.name, "job_id", job.ID, "error", err)
			}
		}
	}()
}
