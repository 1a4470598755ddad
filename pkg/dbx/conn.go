package dbx

import (
	"github.com/marcodd23/go-serialtx/pkg/eventx"
)

// Operation names understood by the connections of this module.
//
// A driver may expose any other name in its Ops table; names outside this list are
// dispatched as plain operations.
const (
	OpExec      = "exec"
	OpRun       = "run"
	OpGet       = "get"
	OpAll       = "all"
	OpEach      = "each"
	OpMap       = "map"
	OpFinalize  = "finalize"
	OpReset     = "reset"
	OpBind      = "bind"
	OpClose     = "close"
	OpPrepare   = "prepare"
	OpSerialize = "serialize"

	OpEmit        = "emit"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpListeners   = "listeners"
)

// Transaction boundary statements, executed through OpExec.
const (
	StmtBegin    = "BEGIN;"
	StmtCommit   = "COMMIT;"
	StmtRollback = "ROLLBACK;"
)

// Events emitted by connections besides eventx.EventError.
const (
	EventTrace = "trace"
	EventClose = "close"
)

// Completion is the completion signal of an asynchronous operation. It is invoked exactly
// once, with a nil err on success followed by the operation's results.
type Completion func(err error, results ...any)

// RowFunc is the per-row signal of multi-phase operations such as OpEach. It is invoked
// once per row before the Completion of the same call.
type RowFunc func(err error, row any)

// Call - one invocation of an Operation.
//
// Fields:
//   - Args: the operation arguments. For statement-taking operations Args[0] is the SQL text
//     and the remaining values are its parameters.
//   - Row: the per-row signal, used only by multi-phase operations.
//   - Done: the completion signal. Operations report failures through Done; when Done is nil
//     they emit eventx.EventError on their Target instead.
type Call struct {
	Args []any
	Row  RowFunc
	Done Completion
}

// SQL returns Args[0] when it is a string.
func (c Call) SQL() (string, bool) {
	if len(c.Args) == 0 {
		return "", false
	}

	sql, ok := c.Args[0].(string)

	return sql, ok
}

// Params returns the arguments following the SQL text.
func (c Call) Params() []any {
	if len(c.Args) < 2 {
		return nil
	}

	return c.Args[1:]
}

// Operation is an asynchronous operation: it returns immediately and reports through
// the signals of the Call.
type Operation func(call Call)

// Ops is the dispatch table of a Target, keyed by operation name.
type Ops map[string]Operation

// Target defines the shape shared by a database connection, its child objects and
// the proxies wrapping either of them: a discoverable set of named operations and an
// event channel.
type Target interface {
	Operations() Ops
	Events() *eventx.Emitter
}

// Connection defines the contract of the single asynchronous database handle sitting
// behind a proxy.
//
// Responsibilities of Connection include:
//   - Switching to serialized execution when Serialize is called, so operations run one
//     at a time in submission order.
//   - Executing the literal BEGIN;, COMMIT; and ROLLBACK; statements through OpExec.
//   - Creating child Targets (prepared statements) through Prepare. The child reports a
//     preparation failure through call.Done, or as an error event when Done is nil.
type Connection interface {
	Target
	Serialize()
	Prepare(call Call) Target
}
