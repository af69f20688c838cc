// Package worker serializes all access to the server's shared state.
//
// One goroutine owns the State and runs submitted jobs strictly one at a
// time, in submission order. At most one job executes at any instant across
// the whole service, which is the single-writer guarantee the PUT handler
// relies on while it validates, tokenizes and consolidates.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/flights/internal/metrics"
	"github.com/dreamware/flights/internal/storage"
)

// ErrStopped is returned for jobs submitted to, or still queued in, a stopped worker
var ErrStopped = errors.New("worker stopped")

// State is the shared state owned by the worker
type State struct {
	Name  string        // Nickname of the configured database
	Store storage.Store // Provisioned store handle
}

// Job runs with exclusive access to the state
type Job func(st *State) error

type request struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Worker runs jobs against a State one at a time
type Worker struct {
	state   *State
	jobs    chan request
	logger  *zap.Logger
	ctx     context.Context    // Cancelled by Stop
	cancel  context.CancelFunc // Cancel function for shutdown
	stopped chan struct{}      // Closed when the run loop has exited
	once    sync.Once
	wg      sync.WaitGroup
}

// New creates a worker over state; queueSize jobs may wait while one runs.
// Call Start before submitting.
func New(state *State, queueSize int, logger *zap.Logger) *Worker {
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		state:   state,
		jobs:    make(chan request, queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// Start launches the run loop
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("worker started", zap.String("database", w.state.Name), zap.Int("queue", cap(w.jobs)))
}

// Stop fails queued jobs with ErrStopped, waits for a running job to
// finish and returns once the loop has exited. Safe to call more than once.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.cancel()
		w.wg.Wait()
		w.logger.Info("worker stopped")
	})
}

// Submit queues job and waits for its result.
// ctx bounds the time spent waiting for a queue slot and for the job to
// finish. A job still queued when ctx ends is skipped; a job already running
// is never interrupted, its result is discarded.
func (w *Worker) Submit(ctx context.Context, job Job) error {
	req := request{ctx: ctx, job: job, done: make(chan error, 1)}

	select {
	case <-w.ctx.Done():
		return ErrStopped
	default:
	}

	select {
	case w.jobs <- req:
		metrics.QueueDepth.Inc()
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrStopped
	}
	return w.wait(ctx, req)
}

// wait blocks until req completes, ctx ends or the worker stops
func (w *Worker) wait(ctx context.Context, req request) error {
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		select {
		case err := <-req.done:
			return err
		default:
			return ctx.Err()
		}
	case <-w.stopped:
		// A send that raced Stop can land after the loop drained the queue
		w.drain()
		select {
		case err := <-req.done:
			return err
		default:
			return ErrStopped
		}
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	defer close(w.stopped)

	for {
		// Stop wins over queued work
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		default:
		}

		select {
		case req := <-w.jobs:
			metrics.QueueDepth.Dec()
			req.done <- w.execute(req)
		case <-w.ctx.Done():
			w.drain()
			return
		}
	}
}

// drain fails every job still queued
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.jobs:
			metrics.QueueDepth.Dec()
			req.done <- ErrStopped
		default:
			return
		}
	}
}

// execute runs one job, skipping it if its submitter already gave up
func (w *Worker) execute(req request) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.JobDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			w.logger.Error("job panicked", zap.Any("panic", r))
			err = fmt.Errorf("worker: job panicked: %v", r)
		}
	}()
	return req.job(w.state)
}
