// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package batch groups jobs into small batches. It mirrors the API of
// github.com/joeycumines/go-microbatch.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by [Batcher.Submit] after [Batcher.Shutdown] or
// [Batcher.Close].
var ErrStopped = errors.New("batch: stopped")

type (
	// BatcherConfig models optional configuration, for NewBatcher.
	BatcherConfig struct {
		// MaxSize restricts the maximum number of jobs per batch, if positive.
		// **Defaults to 16, if 0, or BatcherConfig is nil.**
		MaxSize int

		// FlushInterval specifies the maximum duration before an incomplete
		// batch is processed, if positive.
		// **Defaults to 50ms, if 0, or BatcherConfig is nil.**
		// If MaxSize is specified, time-based flushing can be disabled, by
		// setting this <= 0.
		FlushInterval time.Duration

		// MaxConcurrency specifies the maximum number of concurrent
		// BatchProcessor calls, if positive.
		// **Defaults to 1, if 0, or BatcherConfig is nil.**
		// With 1, batches are processed in submission order.
		MaxConcurrency int
	}

	// BatchProcessor handles a batch of jobs. Any returned error is
	// propagated via JobResult.Wait.
	BatchProcessor[Job any] func(ctx context.Context, jobs []Job) error

	// Batcher accepts jobs, batching them into small groups.
	// Instances must be initialized using the NewBatcher factory.
	Batcher[Job any] struct {
		processor      BatchProcessor[Job]
		maxSize        int
		flushInterval  time.Duration
		maxConcurrency int
		ctx            context.Context
		cancel         context.CancelFunc
		done           chan struct{}
		stopped        chan struct{}
		stopOnce       sync.Once
		jobCh          chan Job         // sent on Submit (ping)
		batchCh        chan *state[Job] // received on Submit (pong)
		state          *state[Job]      // pending batch
	}

	// state models a pending batch
	state[Job any] struct {
		err  error
		done chan struct{}
		jobs []Job
	}

	// JobResult models a scheduled job.
	JobResult[Job any] struct {
		// Job is the submitted job.
		Job   Job
		batch *state[Job]
	}
)

// NewBatcher initializes a new Batcher. The config may be nil. A panic will
// occur if processor is nil, or both MaxSize and FlushInterval are disabled.
//
// Batcher.Shutdown or Batcher.Close must be called to stop the background
// goroutine.
func NewBatcher[Job any](config *BatcherConfig, processor BatchProcessor[Job]) *Batcher[Job] {
	if processor == nil {
		panic(`batch: nil processor`)
	}

	x := Batcher[Job]{
		processor:      processor,
		maxSize:        16,
		flushInterval:  time.Millisecond * 50,
		maxConcurrency: 1,
		state:          newState[Job](),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
		jobCh:          make(chan Job),
		batchCh:        make(chan *state[Job]),
	}

	if config != nil {
		if config.MaxSize != 0 {
			x.maxSize = config.MaxSize
		}
		if config.FlushInterval != 0 {
			x.flushInterval = config.FlushInterval
		}
		if config.MaxConcurrency != 0 {
			x.maxConcurrency = config.MaxConcurrency
		}
	}

	if x.flushInterval <= 0 && x.maxSize <= 0 {
		panic(`batch: one of MaxSize or FlushInterval must be specified`)
	}

	x.ctx, x.cancel = context.WithCancel(context.Background())

	go x.run()

	return &x
}

// Submit schedules a job, returning an error if ctx is canceled, or the
// Batcher is stopped.
func (x *Batcher[Job]) Submit(ctx context.Context, job Job) (*JobResult[Job], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case <-x.stopped:
		return nil, ErrStopped

	case <-x.ctx.Done():
		return nil, ErrStopped

	case x.jobCh <- job: // ping
		return &JobResult[Job]{Job: job, batch: <-x.batchCh}, nil // pong
	}
}

// Shutdown prevents further jobs, then waits for all scheduled jobs to be
// processed. An error will be returned if ctx is canceled prior to this,
// causing a forced Close.
func (x *Batcher[Job]) Shutdown(ctx context.Context) (err error) {
	x.stopOnce.Do(func() { close(x.stopped) })

	select {
	case <-ctx.Done():
		if x.ctx.Err() == nil {
			err = ctx.Err()
		}
		x.cancel()
		<-x.done
	case <-x.done:
	}

	return err
}

// Close cancels all pending jobs, blocking until the Batcher has stopped.
func (x *Batcher[Job]) Close() error {
	x.cancel()
	<-x.done
	return nil
}

func (x *Batcher[Job]) run() {
	defer close(x.done)
	defer x.cancel()

	var wg sync.WaitGroup

	var running chan struct{} // nil if unbounded
	if x.maxConcurrency > 0 {
		running = make(chan struct{}, x.maxConcurrency)
	}

	runBatch := func() {
		if len(x.state.jobs) == 0 {
			return
		}

		batch := x.state
		x.state = newState[Job]()

		wg.Add(1)
		if running != nil {
			running <- struct{}{}
		}
		go func() {
			defer func() {
				if running != nil {
					<-running
				}
				wg.Done()
			}()
			batch.run(x.ctx, x.processor)
		}()
	}

	defer wg.Wait()

	// batches sent once their flush interval expires
	timeoutCh := make(chan *state[Job])

	for {
		select {
		case <-x.ctx.Done():
			return

		case <-x.stopped:
			runBatch()
			return

		case job := <-x.jobCh: // ping
			x.batchCh <- x.state // pong

			x.state.jobs = append(x.state.jobs, job)

			if x.maxSize > 0 && len(x.state.jobs) >= x.maxSize {
				runBatch()
			} else if x.flushInterval > 0 && len(x.state.jobs) == 1 {
				// first job, start the flush timer
				batch := x.state
				timer := time.NewTimer(x.flushInterval)
				go func() {
					defer timer.Stop()
					select {
					case <-x.ctx.Done():
					case <-x.stopped:
					case <-batch.done:
					case <-timer.C:
						select {
						case <-x.ctx.Done():
						case <-x.stopped:
						case <-batch.done:
						case timeoutCh <- batch:
						}
					}
				}()
			}

		case batch := <-timeoutCh:
			if batch == x.state {
				runBatch()
			}
		}
	}
}

func newState[Job any]() *state[Job] {
	return &state[Job]{done: make(chan struct{})}
}

func (x *state[Job]) run(ctx context.Context, processor BatchProcessor[Job]) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	x.err = errors.New(`batch: panic in BatchProcessor`)
	defer close(x.done)

	x.err = processor(ctx, x.jobs)
}

// Wait for the job's batch to be processed, returning the processor's error.
func (x *JobResult[Job]) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-x.batch.done:
		return x.batch.err
	}
}
