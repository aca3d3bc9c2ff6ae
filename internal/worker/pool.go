package worker

import (
	"context"
	"sync"
)

// Pool is a bounded task pool: at most size tasks run concurrently. It
// replaces one-goroutine-per-file fan-out so a large upload cannot overwhelm
// the embedding API's rate limits.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool running at most size tasks at once
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		sem: make(chan struct{}, size),
	}
}

// Submit schedules task, blocking while the pool is saturated. If ctx is
// cancelled before a slot frees, the task is dropped and the context error
// returned.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		task()
	}()

	return nil
}

// Wait blocks until every submitted task has finished
func (p *Pool) Wait() {
	p.wg.Wait()
}
