// Package jobs provides the bounded worker pool that runs conversion jobs
// asynchronously. All workers share a single queue; submission is
// non-blocking and fails fast when the queue is full.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
)

// ErrQueueFull is returned by Submit when the queue has no capacity.
var ErrQueueFull = errors.New("jobs: worker queue full")

// Task is one unit of asynchronous work. It must respect context
// cancellation.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of workers pulling from a shared queue.
type Pool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	queue       chan Task

	inFlight atomic.Int32
	done     atomic.Int64
}

// PoolConfig configures a new pool.
type PoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // default: runtime.NumCPU()
	QueueSize   int // default: 64
}

// NewPool creates a pool. It does not start workers; call Start.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "convert"
	}
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Pool{
		name:        name,
		logger:      logger.With("pool", name, "workers", workerCount),
		workerCount: workerCount,
		queue:       make(chan Task, queueSize),
	}
}

// Submit enqueues a task without blocking. Returns ErrQueueFull when the
// queue has no room; the caller decides whether to reject or retry.
func (p *Pool) Submit(task Task) error {
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the workers and blocks until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("pool starting")
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}
	<-ctx.Done()
	p.logger.Info("pool stopping")
}

func (p *Pool) worker(ctx context.Context, id int) {
	p.logger.Debug("worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			p.inFlight.Add(1)
			task(ctx)
			p.inFlight.Add(-1)
			p.done.Add(1)
		}
	}
}

// PoolStatus reports queue depth and worker activity.
type PoolStatus struct {
	Name     string `json:"name"`
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued"`
	InFlight int    `json:"in_flight"`
	Done     int64  `json:"done"`
}

// Status returns a snapshot of the pool's state.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Name:     p.name,
		Workers:  p.workerCount,
		Queued:   len(p.queue),
		InFlight: int(p.inFlight.Load()),
		Done:     p.done.Load(),
	}
}
