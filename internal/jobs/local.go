package jobs

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrQueueStopped = errors.New("queue stopped")

// LocalQueue runs jobs on goroutines, at most concurrency at a time.
type LocalQueue struct {
	runner *Runner
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewLocalQueue(runner *Runner, concurrency int) *LocalQueue {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalQueue{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *LocalQueue) Start(context.Context) error { return nil }

// Dispatch schedules p and returns immediately. Jobs still waiting for a slot
// when the queue stops are failed with ErrQueueStopped.
func (q *LocalQueue) Dispatch(_ context.Context, p GeneratePayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			q.runner.Abandon(context.WithoutCancel(q.ctx), p, ErrQueueStopped)
			return
		}
		defer q.sem.Release(1)
		if q.ctx.Err() != nil {
			q.runner.Abandon(context.WithoutCancel(q.ctx), p, ErrQueueStopped)
			return
		}
		if err := q.runner.Execute(q.ctx, p); err != nil {
			q.runner.logger.Warn().Err(err).Str("run_id", p.RunID).Msg("run failed")
		}
	}()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (q *LocalQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}
