package pgxdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/pkg/errors"
)

// Result is what run hands to its completion.
type Result struct {
	RowsAffected int64  `json:"rowsAffected"`
	Command      string `json:"command"`
}

// queryFunc runs sql with params. results go to the completion; rows, used by each only,
// are delivered one by one before it.
type queryFunc func(ctx context.Context, conn *pgx.Conn, sql string, params []any) (results []any, rows []any, err error)

// exec runs one or more statements without parameters through the simple protocol.
func (c *Conn) exec(call dbx.Call) {
	sql, ok := call.SQL()
	if !ok {
		c.reject(c.events, call, dbx.OpExec)
		return
	}

	c.submit(func(ctx context.Context, conn *pgx.Conn) func() {
		_, err := conn.Exec(ctx, sql)
		if err != nil {
			err = wrapQueryError(ctx, err, sql)
		}

		return notify(c.events, call.Done, err)
	})
}

// statementOp adapts q to an operation taking the SQL text in Args[0].
func (c *Conn) statementOp(q queryFunc, events *eventx.Emitter) dbx.Operation {
	return func(call dbx.Call) {
		sql, ok := call.SQL()
		if !ok {
			c.reject(events, call, "statement")
			return
		}

		c.submit(func(ctx context.Context, conn *pgx.Conn) func() {
			results, rows, err := q(ctx, conn, sql, call.Params())
			if err != nil {
				err = wrapQueryError(ctx, err, sql)
			}

			return deliver(events, call, rows, err, results...)
		})
	}
}

func (c *Conn) run(ctx context.Context, conn *pgx.Conn, sql string, params []any) ([]any, []any, error) {
	tag, err := conn.Exec(ctx, sql, params...)
	if err != nil {
		return nil, nil, err
	}

	return []any{Result{RowsAffected: tag.RowsAffected(), Command: tag.String()}}, nil, nil
}

func (c *Conn) get(ctx context.Context, conn *pgx.Conn, sql string, params []any) ([]any, []any, error) {
	rows, err := collect(ctx, conn, sql, params)
	if err != nil {
		return nil, nil, err
	}

	var first any
	if len(rows) > 0 {
		first = rows[0]
	}

	return []any{first}, nil, nil
}

func (c *Conn) all(ctx context.Context, conn *pgx.Conn, sql string, params []any) ([]any, []any, error) {
	rows, err := collect(ctx, conn, sql, params)
	if err != nil {
		return nil, nil, err
	}

	return []any{rows}, nil, nil
}

func (c *Conn) each(ctx context.Context, conn *pgx.Conn, sql string, params []any) ([]any, []any, error) {
	rows, err := collect(ctx, conn, sql, params)
	if err != nil {
		return nil, nil, err
	}

	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}

	return []any{len(rows)}, out, nil
}

// mapRows keys the rows by their first column. With exactly two columns the value is the
// second column, otherwise the whole row.
func (c *Conn) mapRows(ctx context.Context, conn *pgx.Conn, sql string, params []any) ([]any, []any, error) {
	rows, err := conn.Query(ctx, sql, params...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	keyed := make(map[string]any)
	for rows.Next() {
		fields := rows.FieldDescriptions()
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		if len(values) == 0 {
			continue
		}

		key := fmt.Sprint(values[0])
		if len(values) == 2 {
			keyed[key] = values[1]
			continue
		}

		row := make(map[string]any, len(values))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		keyed[key] = row
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return []any{keyed}, nil, nil
}

func (c *Conn) close(call dbx.Call) {
	c.submit(func(ctx context.Context, conn *pgx.Conn) func() {
		err := conn.Close(ctx)
		if err != nil {
			err = errorx.NewDatabaseErrorWrapper(err, "error closing connection")
		} else {
			logx.GetLogger().LogInfo(ctx, "DB Connection Successfully Closed!")
		}

		n := notify(c.events, call.Done, err)
		return func() {
			c.events.Emit(dbx.EventClose)
			n()
		}
	})
}

// copyFrom bulk loads rows. Args: table name ("table" or "schema.table"), column names and rows.
func (c *Conn) copyFrom(call dbx.Call) {
	table, columns, rows, err := copyArgs(call.Args)
	if err != nil {
		c.submit(func(context.Context, *pgx.Conn) func() {
			return notify(c.events, call.Done, err)
		})
		return
	}

	c.submit(func(ctx context.Context, conn *pgx.Conn) func() {
		count, err := conn.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return notify(c.events, call.Done, errorx.NewDatabaseErrorWrapper(err, "bulk insert error into %s", table.Sanitize()))
		}

		return notify(c.events, call.Done, nil, count)
	})
}

func (c *Conn) ping(call dbx.Call) {
	c.submit(func(ctx context.Context, conn *pgx.Conn) func() {
		err := conn.Ping(ctx)
		if err != nil {
			err = errorx.NewDatabaseErrorWrapper(err, "ping failed")
		}

		return notify(c.events, call.Done, err)
	})
}

// reject reports a call without SQL text, asynchronously like any other outcome.
func (c *Conn) reject(events *eventx.Emitter, call dbx.Call, name string) {
	err := errorx.NewUsageError("operation '%s' needs the SQL text as first argument", name)
	c.submit(func(context.Context, *pgx.Conn) func() {
		return notify(events, call.Done, err)
	})
}

func collect(ctx context.Context, conn *pgx.Conn, sql string, params []any) ([]map[string]any, error) {
	rows, err := conn.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToMap)
}

// deliver returns the delivery of rows to call.Row followed by the completion.
func deliver(events *eventx.Emitter, call dbx.Call, rows []any, err error, results ...any) func() {
	n := notify(events, call.Done, err, results...)
	if err != nil || len(rows) == 0 {
		return n
	}

	return func() {
		if call.Row != nil {
			for _, row := range rows {
				call.Row(nil, row)
			}
		}
		n()
	}
}

func wrapQueryError(ctx context.Context, err error, sql string) error {
	logx.GetLogger().LogError(ctx, fmt.Sprintf("Error executing query '%s'", sql), err)

	return errorx.NewDatabaseErrorWrapper(err, "Error executing query '%s'", sql)
}

func copyArgs(args []any) (pgx.Identifier, []string, [][]any, error) {
	if len(args) != 3 {
		return nil, nil, nil, errorx.NewUsageError("'%s' takes table, columns and rows, got %d arguments", OpCopyFrom, len(args))
	}

	tableName, ok := args[0].(string)
	if !ok {
		return nil, nil, nil, errorx.NewUsageError("'%s' table name must be a string", OpCopyFrom)
	}
	columns, ok := args[1].([]string)
	if !ok {
		return nil, nil, nil, errorx.NewUsageError("'%s' columns must be a []string", OpCopyFrom)
	}
	rows, ok := args[2].([][]any)
	if !ok {
		return nil, nil, nil, errorx.NewUsageError("'%s' rows must be a [][]any", OpCopyFrom)
	}

	table, err := splitTableName(tableName)
	if err != nil {
		return nil, nil, nil, err
	}

	return table, columns, rows, nil
}

func splitTableName(tableName string) (pgx.Identifier, error) {
	parts := strings.Split(tableName, ".")
	switch len(parts) {
	case 1, 2:
		return pgx.Identifier(parts), nil
	default:
		return nil, errors.Errorf("invalid table name format: %s", tableName)
	}
}
