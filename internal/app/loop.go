package app

import (
	"context"

	"github.com/pkg/errors"
)

// ErrLoopStopped is returned when a closure is posted after the loop exited.
var ErrLoopStopped = errors.New("event loop stopped")

const defaultQueueSize = 256

// Loop executes posted closures one at a time, in posting order, on the goroutine running Run.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

// NewLoop creates a loop with a queue of the given capacity.
func NewLoop(size int) *Loop {
	if size < 1 {
		size = defaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run executes queued closures until ctx is done. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn. It blocks while the queue is full.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits for its result.
// Calling Do from a closure running on the loop deadlocks.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if err := l.Post(ctx, func() { res <- fn() }); err != nil {
		return err
	}

	select {
	case err := <-res:
		return err
	case <-l.done:
		// fn may have run right before the loop stopped
		select {
		case err := <-res:
			return err
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
