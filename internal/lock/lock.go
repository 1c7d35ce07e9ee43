// Package lock provides the per-scope mutual exclusion that keeps two
// deduplication runs from writing the same job collection at once.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned when the scope is already held.
var ErrLocked = errors.New("scope is locked")

// Locker acquires an exclusive lease on a scope.
type Locker interface {
	Acquire(ctx context.Context, scope string) (Lease, error)
}

// Lease releases a held scope.
type Lease interface {
	Release(ctx context.Context) error
}

// LocalLocker serializes runs inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(ctx context.Context, scope string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[scope] {
		return nil, ErrLocked
	}
	l.held[scope] = true
	return &localLease{locker: l, scope: scope}, nil
}

type localLease struct {
	locker *LocalLocker
	scope  string
	once   sync.Once
}

func (l *localLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		defer l.locker.mu.Unlock()
		delete(l.locker.held, l.scope)
	})
	return nil
}
