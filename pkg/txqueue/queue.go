package txqueue

import (
	"context"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
)

// OpKind is the kind of a deferred operation.
type OpKind int

const (
	// KindSimple - a pass-through operation.
	KindSimple OpKind = iota
	// KindLock - a locking operation; the lock counter is acquired right before its dispatch.
	KindLock
	// KindTransactionBegin - a transaction begin request; dispatching it ends a drain pass.
	KindTransactionBegin
)

func (k OpKind) String() string {
	switch k {
	case KindLock:
		return "lock"
	case KindTransactionBegin:
		return "transaction"
	default:
		return "simple"
	}
}

// QueuedOperation - an operation submitted while a transaction was current.
//
// Fields:
//   - Kind: how the drain dispatches it.
//   - Target: the real object the operation runs on (the connection or a prepared statement).
//     Nil for KindTransactionBegin.
//   - Name: the operation name.
//   - Call: the call as submitted, with its completion already guarded for locking operations.
type QueuedOperation struct {
	Kind   OpKind
	Target dbx.Target
	Name   string
	Call   dbx.Call

	op        dbx.Operation
	beginCtx  context.Context
	beginDone BeginFunc
}

// Queue is the FIFO of deferred operations. It is not safe for concurrent use; the
// proxy guards it with the same mutex as the current transaction.
type Queue struct {
	items []QueuedOperation
}

// Push appends op and returns the new queue length.
func (q *Queue) Push(op QueuedOperation) int {
	q.items = append(q.items, op)

	return len(q.items)
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (QueuedOperation, bool) {
	if len(q.items) == 0 {
		return QueuedOperation{}, false
	}

	head := q.items[0]
	q.items[0] = QueuedOperation{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}

	return head, true
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	return len(q.items)
}
