package txqueue

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/pkg/errors"
)

// TxState is the lifecycle state of a transaction.
type TxState int

const (
	// TxPending - requested and current, waiting for outstanding locks or for BEGIN to complete.
	TxPending TxState = iota
	// TxOpen - BEGIN completed; commit and rollback are accepted.
	TxOpen
	// TxFinishing - commit or rollback accepted, waiting for locks or for its statement.
	TxFinishing
	// TxFinished - no longer current.
	TxFinished
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxOpen:
		return "open"
	case TxFinishing:
		return "finishing"
	default:
		return "finished"
	}
}

// BeginFunc receives the outcome of a begin request.
type BeginFunc func(err error, tx *Tx)

// Tx - the transaction handle handed to a BeginFunc.
//
// Operations issued through the handle run on the connection right away and are counted
// when locking, so Commit and Rollback wait for them. Operations issued through the Proxy
// meanwhile are queued until the transaction finishes.
type Tx struct {
	*node
	id    int64
	e     *engine
	state TxState
}

// ID returns the transaction id used in logs and stats.
func (tx *Tx) ID() int64 {
	return tx.id
}

// State returns the current lifecycle state.
func (tx *Tx) State() TxState {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()

	return tx.state
}

// Exec runs one or more statements returning no rows inside the transaction.
func (tx *Tx) Exec(sql string, done dbx.Completion) error {
	return tx.callSQL(dbx.OpExec, sql, nil, nil, done)
}

// Run runs one statement inside the transaction.
func (tx *Tx) Run(sql string, params []any, done dbx.Completion) error {
	return tx.callSQL(dbx.OpRun, sql, params, nil, done)
}

// Get runs a query inside the transaction; done receives its first row, or nil.
func (tx *Tx) Get(sql string, params []any, done dbx.Completion) error {
	return tx.callSQL(dbx.OpGet, sql, params, nil, done)
}

// All runs a query inside the transaction; done receives all of its rows.
func (tx *Tx) All(sql string, params []any, done dbx.Completion) error {
	return tx.callSQL(dbx.OpAll, sql, params, nil, done)
}

// Each runs a query inside the transaction, calling row per row and then done.
func (tx *Tx) Each(sql string, params []any, row dbx.RowFunc, done dbx.Completion) error {
	return tx.callSQL(dbx.OpEach, sql, params, row, done)
}

// Map runs a query inside the transaction; done receives its rows keyed by their first column.
func (tx *Tx) Map(sql string, params []any, done dbx.Completion) error {
	return tx.callSQL(dbx.OpMap, sql, params, nil, done)
}

// Prepare prepares sql for use inside the transaction. The statement's operations bypass
// the queue while tx is open and obey the Proxy rules afterwards, so it can be finalized
// once the transaction finished. On a transaction that is no longer open Prepare behaves
// like Proxy.Prepare.
func (tx *Tx) Prepare(sql string, params []any, done dbx.Completion) *Statement {
	e := tx.e

	e.mu.Lock()
	open := tx.state == TxOpen
	e.mu.Unlock()

	args := append([]any{sql}, params...)
	source := e.conn.Prepare(dbx.Call{Args: args, Done: done})

	if !open {
		return &Statement{node: e.wrapTarget(source, nil, nil)}
	}

	n := e.wrapTarget(source, tx, nil)
	n.outlivesTx = true

	return &Statement{node: n}
}

// Commit commits the transaction once its locking operations completed, then replays the
// operations queued meanwhile, then calls done.
//
// A transaction already finishing or finished gets ErrTransactionFinished and no statement
// is issued. When the lock wait times out the transaction stays open and done gets
// ErrLockWaitTimeout. Otherwise the transaction finishes whether or not COMMIT succeeded.
func (tx *Tx) Commit(ctx context.Context, done func(err error)) {
	tx.finish(ctx, dbx.StmtCommit, done)
}

// Rollback rolls the transaction back, with the same rules as Commit.
func (tx *Tx) Rollback(ctx context.Context, done func(err error)) {
	tx.finish(ctx, dbx.StmtRollback, done)
}

func (tx *Tx) finish(ctx context.Context, stmt string, done func(err error)) {
	e := tx.e
	if done == nil {
		done = func(err error) {
			if err != nil {
				e.reportError(err)
			}
		}
	}

	e.mu.Lock()
	if tx.state != TxOpen {
		e.mu.Unlock()
		done(errorx.NewUsageErrorWrapper(ErrTransactionFinished, "cannot execute '%s' on transaction %d", stmt, tx.id))
		return
	}
	tx.state = TxFinishing
	e.mu.Unlock()

	ctx = logx.WithTxID(contextOrBackground(ctx), tx.id)

	go func() {
		if err := e.awaitUnlocked(ctx); err != nil {
			e.mu.Lock()
			tx.state = TxOpen
			e.mu.Unlock()

			logx.GetLogger().LogWarning(ctx, fmt.Sprintf("'%s' not issued", stmt), err)
			done(err)
			return
		}

		e.exec(dbx.Call{Args: []any{stmt}, Done: func(err error, _ ...any) {
			if err != nil {
				logx.GetLogger().LogError(ctx, fmt.Sprintf("error executing '%s'", stmt), err)
				err = errorx.NewDatabaseErrorWrapper(err, "error executing '%s' for transaction %d", stmt, tx.id)
			} else {
				logx.GetLogger().LogDebug(ctx, fmt.Sprintf("transaction finished with '%s'", stmt))
			}

			e.release(tx)
			done(err)
		}})
	}()
}

// begin opens a transaction now, or queues the request behind the current one.
func (e *engine) begin(ctx context.Context, done BeginFunc) {
	if done == nil {
		done = func(err error, _ *Tx) {
			if err != nil {
				e.reportError(err)
			}
		}
	}
	ctx = contextOrBackground(ctx)

	e.mu.Lock()
	if e.current != nil || e.draining {
		length := e.queue.Push(QueuedOperation{
			Kind:      KindTransactionBegin,
			Name:      "beginTransaction",
			beginCtx:  ctx,
			beginDone: done,
		})
		e.mu.Unlock()

		e.queued(length, "beginTransaction")
		return
	}

	tx := e.openLocked()
	e.mu.Unlock()

	e.start(ctx, tx, done)
}

// openLocked makes a new pending transaction current. e.mu must be held.
func (e *engine) openLocked() *Tx {
	tx := &Tx{id: dbx.GenerateRandomInt64Id(), e: e, state: TxPending}
	tx.node = e.wrapTarget(e.conn, tx, e.events)
	e.current = tx

	return tx
}

// start waits for the outstanding locks of tx, then issues BEGIN.
func (e *engine) start(ctx context.Context, tx *Tx, done BeginFunc) {
	ctx = logx.WithTxID(ctx, tx.id)

	go func() {
		if err := e.awaitUnlocked(ctx); err != nil {
			logx.GetLogger().LogWarning(ctx, "transaction not started", err)
			e.release(tx)
			done(err, nil)
			return
		}

		e.exec(dbx.Call{Args: []any{dbx.StmtBegin}, Done: func(err error, _ ...any) {
			if err != nil {
				logx.GetLogger().LogError(ctx, "error beginning transaction", err)
				e.release(tx)
				done(errorx.NewDatabaseErrorWrapper(err, "error beginning transaction %d", tx.id), nil)
				return
			}

			e.mu.Lock()
			tx.state = TxOpen
			e.mu.Unlock()

			logx.GetLogger().LogDebug(ctx, "transaction opened")
			done(nil, tx)
		}})
	}()
}

// awaitUnlocked waits for in-flight submissions and then for the lock counter to reach
// zero, bounded by the lock wait timeout.
func (e *engine) awaitUnlocked(ctx context.Context) error {
	if e.opts.lockWaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.lockWaitTimeout)
		defer cancel()
	}

	err := e.submitting.Wait(ctx)
	if err == nil {
		err = e.locks.Wait(ctx)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrLockWaitTimeout, "%d operations outstanding", e.locks.Count())
	}

	return errors.WithStack(err)
}

// release retires tx and drains the queue.
func (e *engine) release(tx *Tx) {
	e.mu.Lock()
	tx.state = TxFinished
	if e.current == tx {
		e.current = nil
	}
	e.draining = true
	e.mu.Unlock()

	e.drain()
}

// drain replays queued operations in order until the queue is empty or a queued begin
// request became the current transaction. Calls submitted while draining queue up behind
// the remaining items.
func (e *engine) drain() {
	for {
		e.mu.Lock()
		item, ok := e.queue.Pop()
		if !ok {
			e.draining = false
			e.mu.Unlock()
			return
		}

		if item.Kind == KindTransactionBegin {
			tx := e.openLocked()
			e.draining = false
			e.mu.Unlock()

			e.start(item.beginCtx, tx, item.beginDone)
			return
		}

		if item.Kind == KindLock {
			e.locks.Acquire()
		}
		e.mu.Unlock()

		item.op(item.Call)
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
