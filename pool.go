package appserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task is a unit of work executed by a Pool.
type Task func(ctx context.Context) error

// Pool runs tasks on goroutines it owns and lets the owner join them.
// With maxWorkers == 0 every task gets a dedicated goroutine; otherwise at most
// maxWorkers tasks run at once and the remainder wait for a free slot.
type Pool struct {
	group errgroup.Group
	slots *semaphore.Weighted

	mu     sync.Mutex
	errs   []error
	closed bool
}

// NewPool creates a pool. A negative maxWorkers is treated as 0.
func NewPool(maxWorkers int) *Pool {
	p := &Pool{}
	if maxWorkers > 0 {
		p.slots = semaphore.NewWeighted(int64(maxWorkers))
	}
	return p
}

// Submit schedules task. It does not block on slot availability; a queued task
// waits inside its own goroutine and gives up if ctx is cancelled first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return ErrTaskNil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	// The group has no limit, so Go never blocks while p.mu is held.
	p.group.Go(func() error {
		if p.slots != nil {
			if err := p.slots.Acquire(ctx, 1); err != nil {
				p.record(err)
				return nil
			}
			defer p.slots.Release(1)
		}
		p.record(p.execute(ctx, task))
		return nil
	})
	return nil
}

func (p *Pool) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(ctx)
}

func (p *Pool) record(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

// Wait blocks until every submitted task has returned, then reports their errors
// joined together. Wait closes the pool to further submissions.
func (p *Pool) Wait() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	_ = p.group.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}
