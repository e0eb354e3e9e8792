// Package workerpool provides a bounded pool of workers for blocking upstream
// operations (HTTP GETs, body reads, image decoding).
//
// The pool has a fixed number of workers and a bounded task queue. Submitting
// to a full queue never blocks: the task is rejected with ErrOverloaded so
// the caller can surface the condition instead of piling up goroutines.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrOverloaded is returned when the task queue is full.
	ErrOverloaded = errors.New("worker pool overloaded")

	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("worker pool closed")
)

var (
	poolTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pool_tasks_total",
		Help: "Total worker pool tasks by outcome",
	}, []string{"outcome"}) // "accepted", "rejected", "skipped"

	poolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_pool_queue_depth",
		Help: "Number of tasks waiting in the worker pool queue",
	})

	poolBusyWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_pool_busy_workers",
		Help: "Number of workers currently executing a task",
	})
)

// Config holds worker pool configuration.
type Config struct {
	// Workers is the number of goroutines executing tasks.
	Workers int

	// QueueSize is the maximum number of tasks waiting for a worker.
	QueueSize int
}

// DefaultConfig returns the default pool bounds: 4 workers and room for two
// full pages of thumbnail fetches.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 200,
	}
}

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Pool executes tasks on a fixed set of workers.
type Pool struct {
	tasks   chan task
	workers int
	wg      sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger zerolog.Logger
}

// New creates a pool and starts its workers.
func New(cfg Config, logger zerolog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	p := &Pool{
		tasks:   make(chan task, cfg.QueueSize),
		workers: cfg.Workers,
		logger:  logger,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug().
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Msg("Worker pool started")

	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Do runs fn on a pool worker and waits for it to return.
// It fails fast with ErrOverloaded when the queue is full. If ctx ends while
// waiting, Do returns ctx.Err(); a task that has not started yet is skipped.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.tasks <- t:
		p.mu.RUnlock()
		poolTasksTotal.WithLabelValues("accepted").Inc()
		poolQueueDepth.Inc()
	default:
		p.mu.RUnlock()
		poolTasksTotal.WithLabelValues("rejected").Inc()
		p.logger.Warn().
			Int("queue_size", cap(p.tasks)).
			Msg("Task rejected - workers busy and queue full")
		return ErrOverloaded
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued tasks to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug().Msg("Worker pool stopped")
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()
	processed := 0

	for t := range p.tasks {
		poolQueueDepth.Dec()

		// Caller already gone
		if err := t.ctx.Err(); err != nil {
			poolTasksTotal.WithLabelValues("skipped").Inc()
			t.done <- err
			continue
		}

		poolBusyWorkers.Inc()
		t.done <- t.fn(t.ctx)
		poolBusyWorkers.Dec()
		processed++
	}

	if processed > 0 {
		p.logger.Debug().
			Int("worker_id", workerID).
			Int("tasks_processed", processed).
			Msg("Worker completed")
	}
}
