package lock

import (
	"context"
	"sync"

	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"
)

// Locker serializes critical sections per key. The conversation resolver
// and the membership manager hold a lock across their read-check-write
// cycle; swapping the in-process table for the Redis locker upgrades a
// deployment to multiple instances without touching either contract.
type Locker interface {
	// Acquire blocks until the key lock is held or ctx is done, and
	// returns the release function.
	Acquire(ctx context.Context, key string) (func(), error)
}

// Table is an in-process lock table, sufficient for a single-instance
// deployment.
type Table struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewTable() *Table {
	return &Table{held: map[string]chan struct{}{}}
}

func (t *Table) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		t.mu.Lock()
		ch, taken := t.held[key]
		if !taken {
			ch = make(chan struct{})
			t.held[key] = ch
			t.mu.Unlock()
			return func() {
				t.mu.Lock()
				delete(t.held, key)
				t.mu.Unlock()
				close(ch)
			}, nil
		}
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, apperr.Unavailable("acquire lock "+key, ctx.Err())
		}
	}
}
