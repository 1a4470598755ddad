package pgxdb

import (
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/pkg/errors"
)

// CopyEntities bulk loads entities into tableName through the copyFrom operation of target,
// which is either a Conn or a proxy in front of one.
//
// The column names come from the `db` tags of T; fields tagged `db:"-"` or untagged are
// skipped. done receives the number of rows copied.
//
// Example Usage:
//
//	err := pgxdb.CopyEntities(proxy, "public.event_log", events, func(err error, results ...any) {
//	    ...
//	})
func CopyEntities[T any](target dbx.Target, tableName string, entities []T, done dbx.Completion) error {
	if len(entities) == 0 {
		return errors.New("no entities to insert")
	}

	columns, err := dbx.DeriveColumnNamesFromTags(entities[0], "db")
	if err != nil {
		return errors.Wrap(err, "error deriving column names")
	}

	rows := make([][]any, len(entities))
	for i, entity := range entities {
		if rows[i], err = dbx.StructToArgs(entity, "db"); err != nil {
			return errors.Wrapf(err, "error converting entity %d", i)
		}
	}

	op, ok := target.Operations()[OpCopyFrom]
	if !ok {
		return errors.Errorf("target has no '%s' operation", OpCopyFrom)
	}

	op(dbx.Call{Args: []any{tableName, columns, rows}, Done: done})

	return nil
}
