package pgxdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/eventx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
)

// tracer emits dbx.EventTrace with the SQL text of every statement sent to the server.
type tracer struct {
	events *eventx.Emitter
}

func (t *tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	t.events.Emit(dbx.EventTrace, data.SQL)

	return ctx
}

func (t *tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		return
	}
	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("query done: %s", data.CommandTag.String()))
}
