package pgxdb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
)

// Statement - a server side prepared statement of a Conn. It implements dbx.Target.
//
// Parameters given to run, get, all, each and map replace the bound ones for that call only;
// without parameters the bound ones are used.
type Statement struct {
	conn   *Conn
	name   string
	sql    string
	events *eventx.Emitter

	mu         sync.Mutex
	bound      []any
	prepareErr error
	finalized  bool
}

func newStatement(conn *Conn, sql string, bound []any) *Statement {
	return &Statement{
		conn:   conn,
		name:   "stmt_" + uuid.NewString(),
		sql:    sql,
		events: eventx.NewEmitter(),
		bound:  bound,
	}
}

// Name returns the server side name of the statement.
func (s *Statement) Name() string {
	return s.name
}

// Operations returns the statement operations.
func (s *Statement) Operations() dbx.Ops {
	return dbx.Ops{
		dbx.OpBind:     s.bind,
		dbx.OpRun:      s.query(s.conn.run),
		dbx.OpGet:      s.query(s.conn.get),
		dbx.OpAll:      s.query(s.conn.all),
		dbx.OpEach:     s.query(s.conn.each),
		dbx.OpMap:      s.query(s.conn.mapRows),
		dbx.OpReset:    s.reset,
		dbx.OpFinalize: s.finalize,
	}
}

// Events returns the statement emitter.
func (s *Statement) Events() *eventx.Emitter {
	return s.events
}

func (s *Statement) setPrepareErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prepareErr = err
}

// usable returns why the statement cannot run, or nil. s.mu must be held.
func (s *Statement) usable() error {
	if s.prepareErr != nil {
		return s.prepareErr
	}
	if s.finalized {
		return errorx.NewUsageError("statement '%s' already finalized", s.sql)
	}

	return nil
}

func (s *Statement) bind(call dbx.Call) {
	s.conn.submit(func(context.Context, *pgx.Conn) func() {
		s.mu.Lock()
		err := s.usable()
		if err == nil {
			s.bound = call.Args
		}
		s.mu.Unlock()

		return notify(s.events, call.Done, err)
	})
}

func (s *Statement) query(q queryFunc) dbx.Operation {
	return func(call dbx.Call) {
		s.conn.submit(func(ctx context.Context, conn *pgx.Conn) func() {
			s.mu.Lock()
			err := s.usable()
			params := call.Args
			if len(params) == 0 {
				params = s.bound
			}
			s.mu.Unlock()

			if err != nil {
				return notify(s.events, call.Done, err)
			}

			results, rows, err := q(ctx, conn, s.name, params)
			if err != nil {
				err = wrapQueryError(ctx, err, s.sql)
			}

			return deliver(s.events, call, rows, err, results...)
		})
	}
}

// reset is a no-op kept for symmetry: results are collected eagerly, so no cursor remains open.
func (s *Statement) reset(call dbx.Call) {
	s.conn.submit(func(context.Context, *pgx.Conn) func() {
		s.mu.Lock()
		err := s.usable()
		s.mu.Unlock()

		return notify(s.events, call.Done, err)
	})
}

func (s *Statement) finalize(call dbx.Call) {
	s.conn.submit(func(ctx context.Context, conn *pgx.Conn) func() {
		s.mu.Lock()
		if s.finalized {
			s.mu.Unlock()
			return notify(s.events, call.Done, nil)
		}
		s.finalized = true
		prepared := s.prepareErr == nil
		s.mu.Unlock()

		var err error
		if prepared {
			if err = conn.Deallocate(ctx, s.name); err != nil {
				err = errorx.NewDatabaseErrorWrapper(err, "error deallocating statement '%s'", s.sql)
			}
		}

		return notify(s.events, call.Done, err)
	})
}
