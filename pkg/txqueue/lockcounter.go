package txqueue

import (
	"context"
	"sync"

	"github.com/marcodd23/go-serialtx/pkg/logx"
)

// LockCounter counts the locking operations dispatched to the connection and not completed yet.
//
// Waiters are notified through a channel closed every time the count drops to zero, so
// waiting never polls. The count never goes negative: a Release without a matching Acquire
// is a bookkeeping bug and panics with ErrUnbalancedLocks.
type LockCounter struct {
	mu    sync.Mutex
	count int64
	zero  chan struct{}
}

// NewLockCounter - LockCounter constructor.
func NewLockCounter() *LockCounter {
	zero := make(chan struct{})
	close(zero)

	return &LockCounter{zero: zero}
}

// Acquire records one more outstanding locking operation.
func (c *LockCounter) Acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == 0 {
		c.zero = make(chan struct{})
	}
	c.count++
}

// Release records the completion of one locking operation.
func (c *LockCounter) Release() {
	c.mu.Lock()
	if c.count < 1 {
		c.mu.Unlock()
		logx.GetLogger().LogError(context.TODO(), "lock counter released below zero", ErrUnbalancedLocks)
		panic(ErrUnbalancedLocks)
	}

	c.count--
	if c.count == 0 {
		close(c.zero)
	}
	c.mu.Unlock()
}

// Count returns the number of outstanding locking operations.
func (c *LockCounter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// Wait blocks until the count is zero or ctx is done, returning ctx.Err() in the latter case.
func (c *LockCounter) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.count == 0 {
			c.mu.Unlock()
			return nil
		}
		zero := c.zero
		c.mu.Unlock()

		select {
		case <-zero:
			// re-check: an Acquire may have raced in after the close
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
