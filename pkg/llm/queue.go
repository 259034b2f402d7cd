package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// RateLimitError marks an upstream 429. The Queue treats it specially: a 10s penalty
// sleep followed by re-insertion at the head of the queue, per spec §4.3 — every
// other upstream error surfaces as engineerr.KindLLMUpstream and is not retried by
// the queue itself (callers fall back to schema repair instead).
type RateLimitError struct {
	Cause error
}

func (e *RateLimitError) Error() string { return "llm: rate limited: " + e.Cause.Error() }
func (e *RateLimitError) Unwrap() error { return e.Cause }

func classifyUpstreamError(err error) error {
	if err == nil {
		return nil
	}
	if isRateLimited(err) {
		return &RateLimitError{Cause: err}
	}
	return wrapUpstream(err)
}

func isRateLimited(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	return strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

// Queue is the single process-wide FIFO work queue ParseStrategy and GenerateSignal
// funnel every upstream call through — this is the only place in the engine where
// cross-request ordering matters (spec §4.3, §5, §8 property 6). One worker goroutine
// pops jobs, waits out MinInterval since the previous job *started*, runs the job,
// then sleeps PostDelay before popping the next one. A job that fails with a
// RateLimitError is never handed back to its caller: it sleeps Backoff and is
// reinserted at the head of the queue instead.
type Queue struct {
	MinInterval time.Duration
	PostDelay   time.Duration
	Backoff     time.Duration

	jobs    chan queueJob
	requeue chan queueJob
	stop    chan struct{}
	once    sync.Once

	now func() time.Time
}

type queueJob struct {
	fn   func() error
	done chan error
}

// NewQueue starts the worker goroutine and returns the Queue. Defaults match spec
// §4.3: 2s minimum interval, 1s post-request delay, 10s 429 penalty.
func NewQueue(minInterval, postDelay, backoff time.Duration) *Queue {
	if minInterval <= 0 {
		minInterval = 2 * time.Second
	}
	if postDelay <= 0 {
		postDelay = 1 * time.Second
	}
	if backoff <= 0 {
		backoff = 10 * time.Second
	}
	q := &Queue{
		MinInterval: minInterval,
		PostDelay:   postDelay,
		Backoff:     backoff,
		jobs:        make(chan queueJob, 64),
		requeue:     make(chan queueJob, 64),
		stop:        make(chan struct{}),
		now:         time.Now,
	}
	go q.run()
	return q
}

// Run enqueues fn and blocks until it completes with a result other than a
// RateLimitError, or ctx is cancelled. A rate-limited fn is retried by the queue
// with no retry limit; Run returns an error without enqueuing if the queue is
// already closed.
func (q *Queue) Run(ctx context.Context, fn func() error) error {
	j := queueJob{fn: fn, done: make(chan error, 1)}
	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return errors.New("llm: queue stopped")
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker goroutine. Jobs already popped run to completion; queued
// jobs never get a response.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.stop) })
}

func (q *Queue) run() {
	var lastStart time.Time
	for {
		var j queueJob
		select {
		case j = <-q.requeue:
		default:
			select {
			case j = <-q.requeue:
			case j = <-q.jobs:
			case <-q.stop:
				return
			}
		}

		if wait := q.MinInterval - q.now().Sub(lastStart); wait > 0 {
			time.Sleep(wait)
		}
		lastStart = q.now()

		err := j.fn()
		var rl *RateLimitError
		if errors.As(err, &rl) {
			logx.Errorf("llm: queue job rate limited, backing off %s and requeuing", q.Backoff)
			time.Sleep(q.Backoff)
			select {
			case q.requeue <- j:
			case <-q.stop:
				j.done <- err
			}
			continue
		}

		j.done <- err
		time.Sleep(q.PostDelay)
	}
}
