// Package dbxtest provides a scripted dbx.Connection for tests.
//
// Every operation is recorded as an Invocation. By default invocations complete right
// away, on the calling goroutine; WithHold keeps matching ones pending until the test
// completes them, which is how tests decide the interleaving of completions.
package dbxtest

import (
	"fmt"
	"sync"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
)

// Invocation - one recorded operation call.
type Invocation struct {
	// Target is "conn" for connection operations and "stmt" for statement operations.
	Target string
	Op     string
	SQL    string
	Call   dbx.Call

	events *eventx.Emitter
	mu     sync.Mutex
	done   bool
}

// String renders the invocation as "<op> <sql>", prefixed with "stmt." for statements.
func (inv *Invocation) String() string {
	prefix := ""
	if inv.Target == "stmt" {
		prefix = "stmt."
	}
	if inv.SQL == "" {
		return prefix + inv.Op
	}

	return fmt.Sprintf("%s%s %s", prefix, inv.Op, inv.SQL)
}

// Completed reports whether Complete already ran.
func (inv *Invocation) Completed() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	return inv.done
}

// Complete finishes the invocation. For each, every result is first delivered as a row and
// the completion receives the row count. Without a completion a non-nil err is emitted as an
// error event on the invocation's target. Completing twice is a no-op.
func (inv *Invocation) Complete(err error, results ...any) {
	inv.mu.Lock()
	if inv.done {
		inv.mu.Unlock()
		return
	}
	inv.done = true
	inv.mu.Unlock()

	if inv.Op == dbx.OpEach {
		for _, row := range results {
			if inv.Call.Row != nil {
				inv.Call.Row(nil, row)
			}
		}
		results = []any{len(results)}
	}

	if inv.Call.Done != nil {
		inv.Call.Done(err, results...)
		return
	}

	if err != nil {
		inv.events.Emit(eventx.EventError, err)
	}
}

// Conn - scripted dbx.Connection.
type Conn struct {
	mu          sync.Mutex
	events      *eventx.Emitter
	serialized  int
	invocations []*Invocation
	statements  []*Statement

	hold     func(inv *Invocation) bool
	failures map[string]error
	results  map[string][]any
	async    bool
	extraOps []string
}

// Option configures a Conn.
type Option func(*Conn)

// WithHold keeps the invocations matched by hold pending until the test calls Complete.
func WithHold(hold func(inv *Invocation) bool) Option {
	return func(c *Conn) {
		c.hold = hold
	}
}

// WithFailure makes every invocation running sql complete with err.
func WithFailure(sql string, err error) Option {
	return func(c *Conn) {
		c.failures[sql] = err
	}
}

// WithResult makes every successful invocation running sql complete with results.
func WithResult(sql string, results ...any) Option {
	return func(c *Conn) {
		c.results[sql] = results
	}
}

// WithAsync completes invocations on a new goroutine instead of the calling one.
func WithAsync() Option {
	return func(c *Conn) {
		c.async = true
	}
}

// WithExtraOps adds driver specific operations, completing like any other.
func WithExtraOps(names ...string) Option {
	return func(c *Conn) {
		c.extraOps = append(c.extraOps, names...)
	}
}

// NewConn - Conn constructor.
func NewConn(opts ...Option) *Conn {
	c := &Conn{
		events:   eventx.NewEmitter(),
		failures: make(map[string]error),
		results:  make(map[string][]any),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Operations returns the connection operations.
func (c *Conn) Operations() dbx.Ops {
	ops := dbx.Ops{}
	for _, name := range append([]string{dbx.OpExec, dbx.OpRun, dbx.OpGet, dbx.OpAll, dbx.OpEach, dbx.OpMap, dbx.OpClose}, c.extraOps...) {
		ops[name] = c.operation("conn", name, "", c.events)
	}

	return ops
}

// Events returns the connection emitter.
func (c *Conn) Events() *eventx.Emitter {
	return c.events
}

// Serialize records the call.
func (c *Conn) Serialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.serialized++
}

// SerializeCalls returns how many times Serialize ran.
func (c *Conn) SerializeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.serialized
}

// Prepare returns a scripted statement. The preparation itself is recorded as a "prepare"
// invocation of the connection.
func (c *Conn) Prepare(call dbx.Call) dbx.Target {
	sql, _ := call.SQL()
	stmt := &Statement{conn: c, sql: sql, events: eventx.NewEmitter()}

	c.mu.Lock()
	c.statements = append(c.statements, stmt)
	c.mu.Unlock()

	c.operation("conn", dbx.OpPrepare, sql, stmt.events)(dbx.Call{Args: call.Args, Done: call.Done})

	return stmt
}

// PreparedStatements returns the statements created by Prepare.
func (c *Conn) PreparedStatements() []*Statement {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*Statement(nil), c.statements...)
}

// Invocations returns every recorded invocation, in call order.
func (c *Conn) Invocations() []*Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*Invocation(nil), c.invocations...)
}

// Log returns the String form of every recorded invocation, in call order.
func (c *Conn) Log() []string {
	invocations := c.Invocations()
	log := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		log = append(log, inv.String())
	}

	return log
}

// Pending returns the invocations not completed yet.
func (c *Conn) Pending() []*Invocation {
	var pending []*Invocation
	for _, inv := range c.Invocations() {
		if !inv.Completed() {
			pending = append(pending, inv)
		}
	}

	return pending
}

// Find returns the first invocation whose String form is s.
func (c *Conn) Find(s string) (*Invocation, bool) {
	for _, inv := range c.Invocations() {
		if inv.String() == s {
			return inv, true
		}
	}

	return nil, false
}

func (c *Conn) operation(target, name, fixedSQL string, events *eventx.Emitter) dbx.Operation {
	return func(call dbx.Call) {
		sql := fixedSQL
		if sql == "" {
			sql, _ = call.SQL()
		}

		inv := &Invocation{Target: target, Op: name, SQL: sql, Call: call, events: events}

		c.mu.Lock()
		c.invocations = append(c.invocations, inv)
		hold := c.hold
		err := c.failures[sql]
		results := c.results[sql]
		async := c.async
		c.mu.Unlock()

		if hold != nil && hold(inv) {
			return
		}

		if err != nil {
			results = nil
		}
		if async {
			go inv.Complete(err, results...)
			return
		}
		inv.Complete(err, results...)
	}
}

// Statement - scripted prepared statement.
type Statement struct {
	conn   *Conn
	sql    string
	events *eventx.Emitter
}

// SQL returns the prepared SQL text.
func (s *Statement) SQL() string {
	return s.sql
}

// Operations returns the statement operations.
func (s *Statement) Operations() dbx.Ops {
	ops := dbx.Ops{}
	for _, name := range []string{dbx.OpBind, dbx.OpRun, dbx.OpGet, dbx.OpAll, dbx.OpEach, dbx.OpMap, dbx.OpReset, dbx.OpFinalize} {
		ops[name] = s.conn.operation("stmt", name, s.sql, s.events)
	}

	return ops
}

// Events returns the statement emitter.
func (s *Statement) Events() *eventx.Emitter {
	return s.events
}
