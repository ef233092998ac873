package runtime

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// CPUPool bounds the number of concurrently running tasks submitted
// through Run or TryRun. In this module only Collection.BatchInsertText
// submits work to it (its embedding calls); HNSW search/insert,
// quantization fit and normalization run on the caller's goroutine. It is
// a process-wide singleton created at Vector Store initialization
// (spec.md §9 "Global state").
type CPUPool struct {
	sem *semaphore.Weighted
}

// NewCPUPool creates a pool admitting at most concurrency tasks at once.
func NewCPUPool(concurrency int) *CPUPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &CPUPool{sem: semaphore.NewWeighted(int64(concurrency))}
}

// Run blocks until a slot is free or ctx is done, then runs fn.
func (p *CPUPool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// TryRun runs fn immediately if a slot is free, reporting false without
// running fn otherwise; it never waits for a slot.
func (p *CPUPool) TryRun(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	defer p.sem.Release(1)
	fn()
	return true
}

// IOPool is a separate bounded pool for blocking filesystem operations,
// kept apart from CPUPool so that slow disk work cannot hold CPU slots.
// The Store creates one and exposes it through Store.IOPool; archive
// writes, snapshot rotation and cold-cache reads in this module do not
// run through it.
type IOPool struct {
	sem *semaphore.Weighted
}

// NewIOPool creates an I/O pool admitting at most concurrency operations.
func NewIOPool(concurrency int) *IOPool {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &IOPool{sem: semaphore.NewWeighted(int64(concurrency))}
}

// Run blocks until a slot is free or ctx is done, then runs fn.
func (p *IOPool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
