package datamap

import (
	"context"
	"database/sql"
)

// Assignment pairs a column with a value, for Insert and NewRow.
type Assignment struct {
	col Expr
	val any
}

// Set assigns v to c. A nil pointer v stands for NULL.
func Set[T any](c *Column[T], v T) Assignment { return Assignment{col: c, val: v} }

// SetNull assigns NULL to c.
func SetNull(c Expr) Assignment { return Assignment{col: c} }

// Insert writes one row into t.
//
// It forwards to the underlying [Execer]. On success it returns the driver's
// [sql.Result], which may support LastInsertId and RowsAffected depending on
// the database/driver.
//
// Example:
//
//	_, err := datamap.Insert(ctx, db, datamap.DialectPostgres, users,
//	    datamap.Set(id, int64(1)),
//	    datamap.Set(name, "Al"),
//	    datamap.SetNull(deletedAt),
//	)
func Insert(ctx context.Context, e Execer, d Dialect, t *Table, values ...Assignment) (sql.Result, error) {
	query, args, err := renderInsert(d, t, values)
	if err != nil {
		return nil, err
	}
	Logger().DebugContext(ctx, "datamap: insert", "sql", query, "args", len(args))
	return e.ExecContext(ctx, query, args...)
}
