package txqueue

import (
	"github.com/marcodd23/go-serialtx/pkg/dbx"
)

// OpClass is the interception class of an operation name.
type OpClass int

const (
	// PassThrough operations are dispatched (or queued) but not counted.
	PassThrough OpClass = iota
	// Locking operations are counted until they complete; transaction boundaries wait for them.
	Locking
	// Excluded operations are event wiring and lifecycle control, forwarded unchanged.
	Excluded
)

func (c OpClass) String() string {
	switch c {
	case Locking:
		return "locking"
	case Excluded:
		return "excluded"
	default:
		return "pass-through"
	}
}

var excludedOps = map[string]struct{}{
	dbx.OpEmit:        {},
	dbx.OpSubscribe:   {},
	dbx.OpUnsubscribe: {},
	dbx.OpListeners:   {},
	dbx.OpPrepare:     {},
	dbx.OpSerialize:   {},
}

var lockingOps = map[string]struct{}{
	dbx.OpExec:     {},
	dbx.OpRun:      {},
	dbx.OpGet:      {},
	dbx.OpAll:      {},
	dbx.OpEach:     {},
	dbx.OpMap:      {},
	dbx.OpFinalize: {},
	dbx.OpReset:    {},
}

// Classify returns the interception class of the operation called name.
func Classify(name string) OpClass {
	if _, ok := excludedOps[name]; ok {
		return Excluded
	}

	if _, ok := lockingOps[name]; ok {
		return Locking
	}

	return PassThrough
}
