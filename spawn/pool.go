// Package spawn runs fire-and-forget work on a fixed set of goroutines fed by
// a bounded queue. Submitting never blocks: when the queue is full (or the
// pool is closed) the task is dropped and Go reports false.
//
// usage:
//
//	p := spawn.New(4, 1024)
//	defer p.Close()
//
//	if !p.Go(func() { _ = cache.Set(ctx, k, v) }) {
//	    // dropped; count it
//	}
package spawn

import (
	"sync"
)

const (
	DefaultWorkers = 4
	DefaultQueue   = 1024
)

type Pool struct {
	q  chan func()
	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(workers, qlen int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if qlen <= 0 {
		qlen = DefaultQueue
	}

	p := &Pool{q: make(chan func(), qlen)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for f := range p.q {
				run(f)
			}
		}()
	}
	return p
}

// run isolates a panicking task so one bad write-back cannot take a worker down.
func run(f func()) {
	defer func() { _ = recover() }()
	f()
}

// Go enqueues f. It returns false if f was dropped.
func (p *Pool) Go(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.q <- f:
		return true
	default: // drop
		return false
	}
}

// Close stops accepting work and waits for queued tasks to finish.
// Safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.q)
	p.mu.Unlock()
	p.wg.Wait()
}
