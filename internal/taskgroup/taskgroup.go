// Package taskgroup implements the latching barrier the column builders
// and table reader schedule work through: append tasks (including from
// within a running task, which inference reconversion requires), then
// block until every appended task has completed and recover the first
// error.
package taskgroup

import (
	"sync"
)

// Task is one unit of schedulable work. It returns an error on failure.
type Task func() error

// Group accumulates tasks and latches the first error among them. Append is
// safe to call concurrently, including from within a running task.
type Group interface {
	// Append schedules fn. Once the group has latched a failure it stops
	// running newly appended tasks (they return immediately without
	// executing) but still accepts the call without blocking the caller.
	Append(fn Task)
	// Ok reports whether no task has failed yet.
	Ok() bool
	// Finish blocks until every appended task (including ones appended by
	// tasks themselves) has completed, and returns the first error, if any.
	Finish() error
}

// threaded runs each appended task on its own goroutine from a shared
// worker pool bounded by maxWorkers.
type threaded struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	failed  bool
	firstEr error
}

// NewThreaded returns a Group that runs each task on its own goroutine,
// bounded by maxWorkers concurrently in flight. maxWorkers <= 0 means
// unbounded.
func NewThreaded(maxWorkers int) Group {
	g := &threaded{}
	if maxWorkers > 0 {
		g.sem = make(chan struct{}, maxWorkers)
	}
	return g
}

func (g *threaded) Append(fn Task) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if g.sem != nil {
			g.sem <- struct{}{}
			defer func() { <-g.sem }()
		}
		if !g.Ok() {
			return
		}
		if err := fn(); err != nil {
			g.mu.Lock()
			if !g.failed {
				g.failed = true
				g.firstEr = err
			}
			g.mu.Unlock()
		}
	}()
}

func (g *threaded) Ok() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.failed
}

func (g *threaded) Finish() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstEr
}

// serial runs every appended task inline, on the caller's goroutine, the
// moment it is appended. Used for the table reader's serial body and for
// the parallel reader's two-phase finalize (ParseFinal always runs serially
// even when the body ran threaded).
type serial struct {
	mu      sync.Mutex
	failed  bool
	firstEr error
}

// NewSerial returns a Group that runs every task inline on Append.
func NewSerial() Group {
	return &serial{}
}

func (g *serial) Append(fn Task) {
	g.mu.Lock()
	failed := g.failed
	g.mu.Unlock()
	if failed {
		return
	}
	if err := fn(); err != nil {
		g.mu.Lock()
		if !g.failed {
			g.failed = true
			g.firstEr = err
		}
		g.mu.Unlock()
	}
}

func (g *serial) Ok() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.failed
}

func (g *serial) Finish() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstEr
}
