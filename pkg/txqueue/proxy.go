// Package txqueue serializes the use of one shared asynchronous database connection.
//
// A Proxy wraps a dbx.Connection and exposes the same operations. While no transaction
// is current, calls run immediately. While one is current, calls are queued and replayed
// in submission order once the transaction commits or rolls back; a queued begin request
// ends that replay and becomes the next current transaction. Begin, commit and rollback
// first wait until every locking operation already handed to the connection completed.
//
// Example Usage:
//
//	proxy, err := txqueue.Wrap(conn, txqueue.WithLockWaitTimeout(5*time.Second))
//	if err != nil {
//	    return err
//	}
//
//	err = proxy.RunInTransaction(ctx, func(ctx context.Context, tx *txqueue.Tx) error {
//	    return tx.Run("INSERT INTO accounts (id) VALUES ($1)", []any{id}, nil)
//	})
package txqueue

import (
	"context"
	"sync"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/pkg/errors"
)

// engine holds the state shared by a Proxy and every Statement and Tx created from it.
// The queue, the current transaction and the drain flag are guarded by mu; the counters
// have their own lock and are acquired only while mu is held.
//
// submitting counts the calls handed over without mu and not yet returned by the
// connection, locking or not. Boundaries wait for it so a call dispatched while the
// connection was idle reaches the driver before BEGIN, COMMIT or ROLLBACK.
type engine struct {
	mu       sync.Mutex
	queue    Queue
	current  *Tx
	draining bool

	locks      *LockCounter
	submitting *LockCounter
	conn   dbx.Connection
	exec   dbx.Operation
	events *eventx.Emitter
	opts   options
}

// Proxy - the serialized front of a dbx.Connection. It implements dbx.Target.
type Proxy struct {
	*node
	e *engine
}

// Stats - snapshot of the coordination state.
type Stats struct {
	LockCount   int64  `json:"lockCount"`
	QueueLength int    `json:"queueLength"`
	Draining    bool   `json:"draining"`
	TxID        int64  `json:"txId,omitempty"`
	TxState     string `json:"txState"`
}

// Wrap switches conn to serialized execution and returns the Proxy in front of it.
//
// Arguments:
//   - conn: a ready connection. Wrap never opens or closes it.
//   - opts: Proxy options.
//
// Returns:
//   - *Proxy: the proxy; callers must not use conn directly afterwards.
//   - error: ErrUnknownOperation when conn has no exec operation to run the boundary statements.
func Wrap(conn dbx.Connection, opts ...Option) (*Proxy, error) {
	e := &engine{
		locks:      NewLockCounter(),
		submitting: NewLockCounter(),
		conn:       conn,
	}
	for _, opt := range opts {
		opt(&e.opts)
	}

	exec, ok := conn.Operations()[dbx.OpExec]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOperation, "connection has no '%s' operation", dbx.OpExec)
	}
	e.exec = exec

	conn.Serialize()

	p := &Proxy{node: e.wrapTarget(conn, nil, nil), e: e}
	e.events = p.events

	conn.Events().On(eventx.EventError, func(args ...any) {
		e.rollbackOnDriverError(args...)
	})

	return p, nil
}

// Exec runs one or more statements returning no rows.
func (p *Proxy) Exec(sql string, done dbx.Completion) error {
	return p.callSQL(dbx.OpExec, sql, nil, nil, done)
}

// Run runs one statement; done receives the driver's run result (e.g. rows affected).
func (p *Proxy) Run(sql string, params []any, done dbx.Completion) error {
	return p.callSQL(dbx.OpRun, sql, params, nil, done)
}

// Get runs a query; done receives its first row, or nil.
func (p *Proxy) Get(sql string, params []any, done dbx.Completion) error {
	return p.callSQL(dbx.OpGet, sql, params, nil, done)
}

// All runs a query; done receives all of its rows.
func (p *Proxy) All(sql string, params []any, done dbx.Completion) error {
	return p.callSQL(dbx.OpAll, sql, params, nil, done)
}

// Each runs a query, calling row once per row and then done with the row count.
func (p *Proxy) Each(sql string, params []any, row dbx.RowFunc, done dbx.Completion) error {
	return p.callSQL(dbx.OpEach, sql, params, row, done)
}

// Map runs a query; done receives its rows keyed by their first column.
func (p *Proxy) Map(sql string, params []any, done dbx.Completion) error {
	return p.callSQL(dbx.OpMap, sql, params, nil, done)
}

// Close closes the connection once everything submitted before it ran.
func (p *Proxy) Close(done dbx.Completion) error {
	return p.Call(dbx.OpClose, dbx.Call{Done: done})
}

// Prepare prepares sql on the connection and returns its proxied statement, which shares
// the queue, lock counter and transaction state of p. Preparation itself is never queued.
func (p *Proxy) Prepare(sql string, params []any, done dbx.Completion) *Statement {
	args := append([]any{sql}, params...)
	source := p.e.conn.Prepare(dbx.Call{Args: args, Done: done})

	return &Statement{node: p.e.wrapTarget(source, nil, nil)}
}

// BeginTransaction requests a transaction. When another transaction is current the request
// is queued and done runs only after that transaction finished and this one began.
//
// done receives either the open transaction or the error that prevented BEGIN. A nil done
// forwards a begin failure to the connection's error channel.
func (p *Proxy) BeginTransaction(ctx context.Context, done BeginFunc) {
	p.e.begin(ctx, done)
}

// Stats returns a snapshot of the lock counter, queue and current transaction.
func (p *Proxy) Stats() Stats {
	p.e.mu.Lock()
	defer p.e.mu.Unlock()

	stats := Stats{
		LockCount:   p.e.locks.Count(),
		QueueLength: p.e.queue.Len(),
		Draining:    p.e.draining,
		TxState:     "none",
	}
	if tx := p.e.current; tx != nil {
		stats.TxID = tx.id
		stats.TxState = tx.state.String()
	}

	return stats
}

// rollbackOnDriverError rolls back the open transaction after the connection reported an error.
func (e *engine) rollbackOnDriverError(args ...any) {
	e.mu.Lock()
	tx := e.current
	open := tx != nil && tx.state == TxOpen
	e.mu.Unlock()

	var cause error
	if len(args) > 0 {
		cause, _ = args[0].(error)
	}

	if !open {
		logx.GetLogger().LogError(context.TODO(), "database error", cause)
		return
	}

	ctx := logx.WithTxID(context.Background(), tx.id)
	logx.GetLogger().LogWarning(ctx, "driver error during transaction, rolling back", cause)

	tx.Rollback(ctx, func(error) {})
}
