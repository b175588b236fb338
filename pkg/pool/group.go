package pool

import (
	"golang.org/x/sync/errgroup"
)

// groupQueueDepth bounds the submission buffer of a GroupPool, keeping
// Spawn a bounded enqueue while workers drain.
const groupQueueDepth = 1024

// GroupPool delegates execution to an errgroup-managed set of workers.
type GroupPool struct {
	jobs chan func()
	g    *errgroup.Group
}

// NewGroup creates a pool with n errgroup workers.
func NewGroup(n int) (*GroupPool, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}

	p := &GroupPool{
		jobs: make(chan func(), groupQueueDepth),
		g:    new(errgroup.Group),
	}
	p.g.SetLimit(n)

	for i := 0; i < n; i++ {
		p.g.Go(func() error {
			for job := range p.jobs {
				job()
			}
			return nil
		})
	}
	return p, nil
}

// Spawn enqueues a job for the worker group.
func (p *GroupPool) Spawn(job func()) {
	defer func() {
		// Send on closed channel after Close: drop the job.
		_ = recover()
	}()
	p.jobs <- job
}

// Close closes the queue and waits for queued jobs to finish.
func (p *GroupPool) Close() error {
	close(p.jobs)
	return p.g.Wait()
}
