// Package pool provides worker pools for executing submitted jobs.
//
// Three backends implement the same contract: Naive spawns a goroutine
// per job, SharedQueue runs a fixed set of workers draining one FIFO
// queue and replaces workers that panic, and Group delegates to a
// bounded errgroup.
package pool

import (
	"errors"
	"fmt"
)

// Errors for pool construction.
var (
	ErrInvalidSize = errors.New("pool: worker count must be positive")
	ErrUnknownKind = errors.New("pool: unknown pool kind")
)

// Pool executes submitted jobs on some worker.
//
// Spawn never blocks the caller beyond a bounded enqueue. Jobs are not
// guaranteed to run in submission order. Close stops the pool; the
// SharedQueue and Group backends drop jobs submitted after Close, while
// Naive's Close is a no-op and it keeps running every submitted job.
type Pool interface {
	Spawn(job func())
	Close() error
}

// Kind selects a pool backend.
type Kind string

const (
	KindNaive       Kind = "naive"
	KindSharedQueue Kind = "shared"
	KindGroup       Kind = "group"
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNaive, KindSharedQueue, KindGroup:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// New creates a pool of the given kind with n workers.
// Naive ignores n; the other backends require n > 0.
func New(kind Kind, n int) (Pool, error) {
	switch kind {
	case KindNaive:
		return NewNaive(), nil
	case KindSharedQueue:
		return NewSharedQueue(n)
	case KindGroup:
		return NewGroup(n)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
