//go:build integration

package pgxdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-serialtx/pkg/txqueue"
	"github.com/marcodd23/go-serialtx/test/testcontainer/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type EventLog struct {
	MessageID  int    `db:"-"`
	EntityName string `db:"entity_name"`
	EntityKey  string `db:"entity_key"`
	Age        int32  `db:"age"`
	IsActive   bool   `db:"is_active"`
}

type outcome struct {
	err     error
	results []any
}

func await(t *testing.T, call func(done dbx.Completion) error) outcome {
	t.Helper()

	ch := make(chan outcome, 1)
	require.NoError(t, call(func(err error, results ...any) {
		ch <- outcome{err: err, results: results}
	}))

	select {
	case o := <-ch:
		return o
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the database")
	}

	return outcome{}
}

// setupProxy - starts the container and returns a proxy over a fresh connection to it.
func setupProxy(ctx context.Context, t *testing.T) (*txqueue.Proxy, func()) {
	container := postgres.StartPostgresContainer(ctx, t)

	conn, err := pgxdb.Connect(ctx, container.ConnConfig())
	require.NoError(t, err)

	proxy, err := txqueue.Wrap(conn, txqueue.WithLockWaitTimeout(10*time.Second))
	require.NoError(t, err)

	return proxy, func() {
		_ = await(t, proxy.Close)
		_ = container.StopContainer(ctx, t)
	}
}

func TestPostgresConnection(t *testing.T) {
	ctx := context.Background()

	proxy, teardown := setupProxy(ctx, t)
	defer teardown()

	t.Run("TestCommittedTransaction", func(t *testing.T) {
		err := proxy.RunInTransaction(ctx, func(_ context.Context, tx *txqueue.Tx) error {
			if err := tx.Run("INSERT INTO accounts (id, balance) VALUES ($1, $2)", []any{1, 100}, nil); err != nil {
				return err
			}
			return tx.Run("INSERT INTO accounts (id, balance) VALUES ($1, $2)", []any{2, 50}, nil)
		})
		require.NoError(t, err)

		o := await(t, func(done dbx.Completion) error {
			return proxy.Get("SELECT SUM(balance) AS total FROM accounts", nil, done)
		})
		require.NoError(t, o.err)
		assert.EqualValues(t, 150, o.results[0].(map[string]any)["total"])
	})

	t.Run("TestRolledBackTransaction", func(t *testing.T) {
		err := proxy.RunInTransaction(ctx, func(_ context.Context, tx *txqueue.Tx) error {
			o := await(t, func(done dbx.Completion) error {
				return tx.Run("UPDATE accounts SET balance = balance - 500 WHERE id = $1", []any{1}, done)
			})
			return o.err
		})
		require.Error(t, err)

		o := await(t, func(done dbx.Completion) error {
			return proxy.Map("SELECT id, balance FROM accounts ORDER BY id", nil, done)
		})
		require.NoError(t, o.err)
		assert.EqualValues(t, map[string]any{"1": int32(100), "2": int32(50)}, o.results[0])
	})

	t.Run("TestOutsideWriteDeferredUntilCommit", func(t *testing.T) {
		began := make(chan error, 1)
		var tx *txqueue.Tx
		proxy.BeginTransaction(ctx, func(err error, begun *txqueue.Tx) {
			tx = begun
			began <- err
		})
		require.NoError(t, <-began)

		outside := make(chan outcome, 1)
		require.NoError(t, proxy.Run("INSERT INTO accounts (id, balance) VALUES (3, 0)", nil, func(err error, results ...any) {
			outside <- outcome{err: err, results: results}
		}))

		o := await(t, func(done dbx.Completion) error {
			return tx.Get("SELECT COUNT(*) AS n FROM accounts WHERE id = 3", nil, done)
		})
		require.NoError(t, o.err)
		assert.EqualValues(t, 0, o.results[0].(map[string]any)["n"])

		committed := make(chan error, 1)
		tx.Commit(ctx, func(err error) { committed <- err })
		require.NoError(t, <-committed)

		require.NoError(t, (<-outside).err)
	})

	t.Run("TestPreparedStatement", func(t *testing.T) {
		stmt := proxy.Prepare("SELECT balance FROM accounts WHERE id = $1", []any{2}, nil)

		o := await(t, func(done dbx.Completion) error { return stmt.Get(nil, done) })
		require.NoError(t, o.err)
		assert.EqualValues(t, 50, o.results[0].(map[string]any)["balance"])

		o = await(t, func(done dbx.Completion) error { return stmt.Get([]any{1}, done) })
		require.NoError(t, o.err)
		assert.EqualValues(t, 100, o.results[0].(map[string]any)["balance"])

		require.NoError(t, await(t, stmt.Finalize).err)
	})

	t.Run("TestEach", func(t *testing.T) {
		var ids []any
		o := await(t, func(done dbx.Completion) error {
			return proxy.Each("SELECT id FROM accounts ORDER BY id", nil, func(err error, row any) {
				assert.NoError(t, err)
				ids = append(ids, row.(map[string]any)["id"])
			}, done)
		})
		require.NoError(t, o.err)
		assert.Equal(t, []any{int32(1), int32(2), int32(3)}, ids)
		assert.Equal(t, []any{3}, o.results)
	})

	t.Run("TestPing", func(t *testing.T) {
		o := await(t, func(done dbx.Completion) error {
			return proxy.Call(pgxdb.OpPing, dbx.Call{Done: done})
		})
		require.NoError(t, o.err)
	})

	t.Run("TestCopyEntities", func(t *testing.T) {
		events := []EventLog{
			{EntityName: "order", EntityKey: "o-1", Age: 1, IsActive: true},
			{EntityName: "order", EntityKey: "o-2", Age: 2},
		}

		o := await(t, func(done dbx.Completion) error {
			return pgxdb.CopyEntities(proxy, "event_log", events, done)
		})
		require.NoError(t, o.err)
		assert.Equal(t, []any{int64(2)}, o.results)

		o = await(t, func(done dbx.Completion) error {
			return proxy.All("SELECT entity_name, entity_key, age, is_active FROM event_log ORDER BY entity_key", nil, done)
		})
		require.NoError(t, o.err)

		var got []EventLog
		for _, row := range o.results[0].([]map[string]any) {
			event, err := dbx.RowToStruct[EventLog](row, "db")
			require.NoError(t, err)
			got = append(got, event)
		}
		assert.Equal(t, events, got)
	})
}
