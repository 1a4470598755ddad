// Package pgxdb implements dbx.Connection on top of a single pgx connection.
//
// pgx connections are not safe for concurrent use, so every operation runs under the
// connection mutex. Before Serialize each operation gets its own goroutine and the order
// in which they reach the server is unspecified; after Serialize a single worker runs them
// strictly in submission order. Completions run after the statement finished, outside the
// mutex.
package pgxdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/marcodd23/go-serialtx/pkg/validator"
)

// Driver specific operations. Both are pass-through for the txqueue classifier.
const (
	// OpCopyFrom bulk loads rows with COPY. Args: table name, column names, rows ([][]any).
	OpCopyFrom = "copyFrom"
	// OpPing checks the connection is alive.
	OpPing = "ping"
)

// job runs one operation against the pgx connection and returns the notification to
// deliver once the connection is released, or nil.
type job func(ctx context.Context, conn *pgx.Conn) func()

// Conn - dbx.Connection over one *pgx.Conn.
type Conn struct {
	conn   *pgx.Conn
	events *eventx.Emitter
	ctx    context.Context

	// mu serializes the use of conn.
	mu sync.Mutex

	qmu        sync.Mutex
	serialized bool
	pending    []job
	working    bool
}

// Connect opens the connection described by dbConf.
//
// Arguments:
//   - ctx: bounds the connection attempt together with dbConf.ConnectTimeout.
//   - dbConf: the connection settings; validated before dialing.
//
// Returns:
//   - *Conn: the connection, in parallel mode.
//   - error: a validation error, or a DatabaseError wrapping the dial failure.
func Connect(ctx context.Context, dbConf dbx.ConnConfig) (*Conn, error) {
	if errs := validator.NewValidator().ValidateStruct(dbConf); len(errs) > 0 {
		return nil, errorx.NewDatabaseErrorWrapper(validator.NewValidationError(errs), "invalid connection configuration")
	}

	events := eventx.NewEmitter()

	connConfig, err := createConnectionConfiguration(dbConf)
	if err != nil {
		return nil, err
	}
	connConfig.Tracer = &tracer{events: events}

	pgxConn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error connecting to %s:%d/%s", dbConf.Host, dbConf.Port, dbConf.DBName)
	}

	logx.GetLogger().LogInfo(ctx, fmt.Sprintf("Connected to DB=%s, HOST=%s, PORT=%d", dbConf.DBName, dbConf.Host, dbConf.Port))

	return &Conn{
		conn:   pgxConn,
		events: events,
		ctx:    context.Background(),
	}, nil
}

func createConnectionConfiguration(dbConf dbx.ConnConfig) (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig("")
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error creating connection config")
	}

	connConfig.Host = dbConf.Host
	connConfig.Port = uint16(dbConf.Port)
	connConfig.Database = dbConf.DBName
	connConfig.User = dbConf.User
	connConfig.Password = dbConf.Password
	if dbConf.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = dbConf.ConnectTimeout
	}

	return connConfig, nil
}

// Operations returns the connection operations.
func (c *Conn) Operations() dbx.Ops {
	return dbx.Ops{
		dbx.OpExec:  c.exec,
		dbx.OpRun:   c.statementOp(c.run, c.events),
		dbx.OpGet:   c.statementOp(c.get, c.events),
		dbx.OpAll:   c.statementOp(c.all, c.events),
		dbx.OpEach:  c.statementOp(c.each, c.events),
		dbx.OpMap:   c.statementOp(c.mapRows, c.events),
		dbx.OpClose: c.close,
		OpCopyFrom:  c.copyFrom,
		OpPing:      c.ping,
	}
}

// Events returns the connection emitter. It emits eventx.EventError for failures without
// a completion, dbx.EventTrace with the SQL of every statement sent and dbx.EventClose.
func (c *Conn) Events() *eventx.Emitter {
	return c.events
}

// Serialize switches to ordered execution. Operations submitted afterwards run one at a
// time in submission order.
func (c *Conn) Serialize() {
	c.qmu.Lock()
	defer c.qmu.Unlock()

	c.serialized = true
}

// Prepare prepares the statement in Args[0] under a generated name and returns it right
// away; the preparation outcome is reported through call.Done.
func (c *Conn) Prepare(call dbx.Call) dbx.Target {
	sql, _ := call.SQL()
	stmt := newStatement(c, sql, call.Params())

	c.submit(func(ctx context.Context, conn *pgx.Conn) func() {
		_, err := conn.Prepare(ctx, stmt.name, sql)
		if err != nil {
			err = errorx.NewDatabaseErrorWrapper(err, "error preparing statement '%s'", sql)
			stmt.setPrepareErr(err)
		}

		return notify(stmt.events, call.Done, err)
	})

	return stmt
}

// submit schedules j according to the current execution mode.
func (c *Conn) submit(j job) {
	c.qmu.Lock()
	if !c.serialized {
		c.qmu.Unlock()
		go c.run1(j)
		return
	}

	c.pending = append(c.pending, j)
	start := !c.working
	c.working = true
	c.qmu.Unlock()

	if start {
		go c.work()
	}
}

// work runs the pending jobs in order until none is left.
func (c *Conn) work() {
	for {
		c.qmu.Lock()
		if len(c.pending) == 0 {
			c.working = false
			c.qmu.Unlock()
			return
		}
		j := c.pending[0]
		c.pending[0] = nil
		c.pending = c.pending[1:]
		c.qmu.Unlock()

		c.run1(j)
	}
}

func (c *Conn) run1(j job) {
	c.mu.Lock()
	deliver := j(c.ctx, c.conn)
	c.mu.Unlock()

	if deliver != nil {
		deliver()
	}
}

// notify returns the delivery of a completion, or of an error event on events when done is nil.
func notify(events *eventx.Emitter, done dbx.Completion, err error, results ...any) func() {
	return func() {
		if done != nil {
			done(err, results...)
			return
		}
		if err != nil {
			events.Emit(eventx.EventError, err)
		}
	}
}
