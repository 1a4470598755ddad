package pgxdb

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/dbx/dbxtest"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTableName(t *testing.T) {
	id, err := splitTableName("event_log")
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"event_log"}, id)

	id, err = splitTableName("audit.event_log")
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"audit", "event_log"}, id)

	_, err = splitTableName("a.b.c")
	require.Error(t, err)
}

func TestCopyArgs(t *testing.T) {
	table, columns, rows, err := copyArgs([]any{"event_log", []string{"a", "b"}, [][]any{{1, "x"}}})
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"event_log"}, table)
	assert.Equal(t, []string{"a", "b"}, columns)
	assert.Equal(t, [][]any{{1, "x"}}, rows)

	for _, args := range [][]any{
		{"event_log"},
		{1, []string{"a"}, [][]any{}},
		{"event_log", []any{"a"}, [][]any{}},
		{"event_log", []string{"a"}, []any{}},
	} {
		_, _, _, err := copyArgs(args)
		var usage *errorx.UsageError
		require.ErrorAs(t, err, &usage, "%v", args)
	}
}

func TestCreateConnectionConfiguration(t *testing.T) {
	cfg, err := createConnectionConfiguration(dbx.ConnConfig{
		Host:           "db.internal",
		Port:           6432,
		DBName:         "main-db",
		User:           "svc",
		Password:       "secret",
		ConnectTimeout: 3 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, uint16(6432), cfg.Port)
	assert.Equal(t, "main-db", cfg.Database)
	assert.Equal(t, "svc", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
}

func TestConnectRejectsInvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), dbx.ConnConfig{Host: "localhost"})

	var dbErr *errorx.DatabaseError
	require.ErrorAs(t, err, &dbErr)
}

type event struct {
	ID   int    `db:"-"`
	Name string `db:"entity_name"`
	Key  string `db:"entity_key"`
}

func TestCopyEntities(t *testing.T) {
	conn := dbxtest.NewConn(dbxtest.WithExtraOps(OpCopyFrom))

	var got []any
	err := CopyEntities(conn, "event_log", []event{{1, "order", "o-1"}, {2, "order", "o-2"}}, func(err error, results ...any) {
		require.NoError(t, err)
		got = results
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	invocations := conn.Invocations()
	require.Len(t, invocations, 1)
	assert.Equal(t, OpCopyFrom, invocations[0].Op)
	assert.Equal(t, []any{
		"event_log",
		[]string{"entity_name", "entity_key"},
		[][]any{{"order", "o-1"}, {"order", "o-2"}},
	}, invocations[0].Call.Args)
}

func TestCopyEntitiesErrors(t *testing.T) {
	conn := dbxtest.NewConn()

	require.Error(t, CopyEntities[event](conn, "event_log", nil, nil))
	require.Error(t, CopyEntities(conn, "event_log", []event{{Name: "order"}}, nil))
	assert.Empty(t, conn.Invocations())
}
