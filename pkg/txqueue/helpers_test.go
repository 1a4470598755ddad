package txqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/dbx/dbxtest"
	"github.com/marcodd23/go-serialtx/pkg/txqueue"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type result struct {
	err     error
	results []any
}

func newProxy(t *testing.T, connOpts []dbxtest.Option, opts ...txqueue.Option) (*txqueue.Proxy, *dbxtest.Conn) {
	t.Helper()

	conn := dbxtest.NewConn(connOpts...)
	proxy, err := txqueue.Wrap(conn, opts...)
	require.NoError(t, err)

	return proxy, conn
}

// completion returns a Completion sending its outcome on the returned channel.
func completion() (dbx.Completion, <-chan result) {
	ch := make(chan result, 1)

	return func(err error, results ...any) {
		ch <- result{err: err, results: results}
	}, ch
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a callback")
	}

	var zero T
	return zero
}

func requireNothing[T any](t *testing.T, ch <-chan T) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("unexpected callback: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func begin(t *testing.T, proxy *txqueue.Proxy) *txqueue.Tx {
	t.Helper()

	type begun struct {
		tx  *txqueue.Tx
		err error
	}
	ch := make(chan begun, 1)
	proxy.BeginTransaction(context.Background(), func(err error, tx *txqueue.Tx) {
		ch <- begun{tx: tx, err: err}
	})

	b := receive(t, ch)
	require.NoError(t, b.err)
	require.NotNil(t, b.tx)

	return b.tx
}

func finish(t *testing.T, fn func(ctx context.Context, done func(error))) error {
	t.Helper()

	ch := make(chan error, 1)
	fn(context.Background(), func(err error) { ch <- err })

	return receive(t, ch)
}

func holdSQL(sqls ...string) dbxtest.Option {
	held := make(map[string]struct{}, len(sqls))
	for _, sql := range sqls {
		held[sql] = struct{}{}
	}

	return dbxtest.WithHold(func(inv *dbxtest.Invocation) bool {
		_, ok := held[inv.SQL]
		return ok
	})
}

func findInvocation(t *testing.T, conn *dbxtest.Conn, s string) *dbxtest.Invocation {
	t.Helper()

	var inv *dbxtest.Invocation
	require.Eventually(t, func() bool {
		var ok bool
		inv, ok = conn.Find(s)
		return ok
	}, waitTimeout, 5*time.Millisecond, "invocation %q never dispatched", s)

	return inv
}
