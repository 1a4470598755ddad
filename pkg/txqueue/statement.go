package txqueue

import (
	"github.com/marcodd23/go-serialtx/pkg/dbx"
)

// Statement - the proxied form of a prepared statement.
//
// A Statement created by Proxy.Prepare obeys the same rules as the Proxy: its calls are
// queued while a transaction is current. One created by Tx.Prepare runs its calls inside
// that transaction.
type Statement struct {
	*node
}

// Bind replaces the parameters bound to the statement.
func (s *Statement) Bind(params []any, done dbx.Completion) error {
	return s.Call(dbx.OpBind, dbx.Call{Args: params, Done: done})
}

// Run runs the statement; empty params reuse the bound ones.
func (s *Statement) Run(params []any, done dbx.Completion) error {
	return s.Call(dbx.OpRun, dbx.Call{Args: params, Done: done})
}

// Get runs the statement; done receives its first row, or nil.
func (s *Statement) Get(params []any, done dbx.Completion) error {
	return s.Call(dbx.OpGet, dbx.Call{Args: params, Done: done})
}

// All runs the statement; done receives all of its rows.
func (s *Statement) All(params []any, done dbx.Completion) error {
	return s.Call(dbx.OpAll, dbx.Call{Args: params, Done: done})
}

// Each runs the statement, calling row per row and then done with the row count.
func (s *Statement) Each(params []any, row dbx.RowFunc, done dbx.Completion) error {
	return s.Call(dbx.OpEach, dbx.Call{Args: params, Row: row, Done: done})
}

// Map runs the statement; done receives its rows keyed by their first column.
func (s *Statement) Map(params []any, done dbx.Completion) error {
	return s.Call(dbx.OpMap, dbx.Call{Args: params, Done: done})
}

// Reset resets the statement so it can run again.
func (s *Statement) Reset(done dbx.Completion) error {
	return s.Call(dbx.OpReset, dbx.Call{Done: done})
}

// Finalize releases the statement on the connection.
func (s *Statement) Finalize(done dbx.Completion) error {
	return s.Call(dbx.OpFinalize, dbx.Call{Done: done})
}
