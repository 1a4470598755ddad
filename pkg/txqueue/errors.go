package txqueue

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnbalancedLocks - the lock counter was released more times than acquired.
	ErrUnbalancedLocks = errors.New("locks are not balanced")

	// ErrTransactionFinished - commit, rollback or an operation was issued on a transaction
	// that is already finishing or finished.
	ErrTransactionFinished = errors.New("transaction already finished")

	// ErrUnknownOperation - the wrapped object exposes no operation with the requested name.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrLockWaitTimeout - a transaction boundary gave up waiting for outstanding locking operations.
	ErrLockWaitTimeout = errors.New("timed out waiting for outstanding locking operations")
)
