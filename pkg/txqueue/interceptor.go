package txqueue

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/pkg/errors"
)

// node is the proxied form of one dbx.Target: same operation names, each non-excluded
// one replaced by an interceptor, and an emitter receiving the source's events.
//
// A node bound to a transaction (tx != nil) dispatches straight to the source instead of
// going through the queue; it serves the transaction's own statements. A node that
// outlives its transaction (a statement prepared inside it) falls back to the queue once
// the transaction finished, so it can still be finalized.
type node struct {
	e          *engine
	source     dbx.Target
	ops        dbx.Ops
	events     *eventx.Emitter
	tx         *Tx
	outlivesTx bool
}

// wrapTarget discovers the operations of source and installs an interceptor for every
// operation the classifier does not exclude.
func (e *engine) wrapTarget(source dbx.Target, tx *Tx, events *eventx.Emitter) *node {
	n := &node{
		e:      e,
		source: source,
		ops:    make(dbx.Ops),
		events: events,
		tx:     tx,
	}

	for name, op := range source.Operations() {
		class := Classify(name)
		if class == Excluded {
			n.ops[name] = op
			continue
		}
		n.ops[name] = n.intercept(name, op, class == Locking)
	}

	if n.events == nil {
		n.events = eventx.NewEmitter()
		source.Events().Relay(func(event string, args ...any) {
			n.events.Emit(event, args...)
		})
	}

	return n
}

func (n *node) intercept(name string, op dbx.Operation, locking bool) dbx.Operation {
	return func(call dbx.Call) {
		if n.tx != nil {
			n.e.dispatchInTx(n.tx, n.source, name, op, locking, n.outlivesTx, call)
			return
		}
		n.e.dispatch(n.source, name, op, locking, call)
	}
}

// Operations returns the proxied dispatch table. It has the same names as the source's.
func (n *node) Operations() dbx.Ops {
	ops := make(dbx.Ops, len(n.ops))
	for name, op := range n.ops {
		ops[name] = op
	}

	return ops
}

// Events returns the emitter surfacing the events of the wrapped object.
func (n *node) Events() *eventx.Emitter {
	return n.events
}

// Call invokes the operation called name. It fails only when the wrapped object has no
// such operation; the outcome of the operation itself is reported through call.Done.
func (n *node) Call(name string, call dbx.Call) error {
	op, ok := n.ops[name]
	if !ok {
		return errors.Wrapf(ErrUnknownOperation, "'%s'", name)
	}

	op(call)

	return nil
}

func (n *node) callSQL(name, sql string, params []any, row dbx.RowFunc, done dbx.Completion) error {
	args := make([]any, 0, len(params)+1)
	args = append(args, sql)
	args = append(args, params...)

	return n.Call(name, dbx.Call{Args: args, Row: row, Done: done})
}

// dispatch applies the dispatch rule to one intercepted call: run it now when the
// connection is idle, defer it when a transaction is current or a drain is in progress.
func (e *engine) dispatch(target dbx.Target, name string, op dbx.Operation, locking bool, call dbx.Call) {
	kind := KindSimple
	if locking {
		kind = KindLock
		call = e.guard(name, call)
	}

	e.mu.Lock()
	if e.current != nil || e.draining {
		length := e.queue.Push(QueuedOperation{Kind: kind, Target: target, Name: name, Call: call, op: op})
		e.mu.Unlock()

		e.queued(length, name)
		return
	}

	// acquire before dispatch so a boundary never sees a zero count for a submitted operation
	if locking {
		e.locks.Acquire()
	}
	e.submitting.Acquire()
	e.mu.Unlock()
	defer e.submitting.Release()

	op(call)
}

// dispatchInTx runs an operation of tx directly on the connection, counted when locking.
// Once tx left TxOpen, calls on a statement prepared inside it take the regular dispatch
// path; every other call is rejected with ErrTransactionFinished.
func (e *engine) dispatchInTx(tx *Tx, target dbx.Target, name string, op dbx.Operation, locking, outlivesTx bool, call dbx.Call) {
	e.mu.Lock()
	if tx.state != TxOpen {
		e.mu.Unlock()

		if outlivesTx {
			e.dispatch(target, name, op, locking, call)
			return
		}

		err := errors.Wrapf(ErrTransactionFinished, "operation '%s' on transaction %d", name, tx.id)
		if call.Done != nil {
			call.Done(err)
		} else {
			e.reportError(err)
		}
		return
	}

	if locking {
		call = e.guard(name, call)
		e.locks.Acquire()
	}
	e.submitting.Acquire()
	e.mu.Unlock()
	defer e.submitting.Release()

	op(call)
}

// guard makes sure a locking call has a completion, and that the completion releases the
// lock counter before anything else runs.
func (e *engine) guard(name string, call dbx.Call) dbx.Call {
	done := call.Done
	if done == nil {
		done = e.reportCompletion
	}

	if name == dbx.OpEach && call.Row == nil {
		call.Row = e.reportRow
	}

	call.Done = func(err error, results ...any) {
		e.locks.Release()
		done(err, results...)
	}

	return call
}

// reportCompletion is the completion installed when the caller supplied none.
func (e *engine) reportCompletion(err error, _ ...any) {
	if err != nil {
		e.reportError(err)
	}
}

func (e *engine) reportRow(err error, _ any) {
	if err != nil {
		e.reportError(err)
	}
}

// reportError forwards err to the error channel of the connection.
func (e *engine) reportError(err error) {
	e.conn.Events().Emit(eventx.EventError, err)
}

func (e *engine) queued(length int, name string) {
	logx.GetLogger().LogDebug(context.TODO(), fmt.Sprintf("deferred operation '%s', queue length %d", name, length))

	if e.opts.queueWarnThreshold > 0 && length == e.opts.queueWarnThreshold+1 {
		logx.GetLogger().LogWarning(context.TODO(),
			fmt.Sprintf("deferred operation queue grew past %d operations", e.opts.queueWarnThreshold))
	}
}
