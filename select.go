package datamap

import (
	"context"
	"database/sql"
	"iter"
)

// SelectOption adjusts the SELECT issued by SelectWithMapper.
type SelectOption func(*selectConfig)

type selectConfig struct {
	dialect Dialect
	order   []orderTerm
	limit   int
	offset  int
}

// WithDialect renders the query for d. The default is DialectSQLite, whose
// quoting and '?' placeholders are also accepted by most other engines.
func WithDialect(d Dialect) SelectOption {
	return func(c *selectConfig) { c.dialect = d }
}

// WithOrderBy appends an ORDER BY term. Without one, rows come back in
// whatever order the database produces.
func WithOrderBy(c Expr, o SortOrder) SelectOption {
	return func(cfg *selectConfig) { cfg.order = append(cfg.order, orderTerm{col: c, order: o}) }
}

// WithLimit caps the number of rows.
func WithLimit(n int) SelectOption {
	return func(c *selectConfig) { c.limit = n }
}

// WithOffset skips the first n rows.
func WithOffset(n int) SelectOption {
	return func(c *selectConfig) { c.offset = n }
}

// SelectWithMapper selects exactly the columns m needs from `from`, restricted
// by where when it is not nil, and returns a cursor that converts each row
// with m.
//
// One query is issued per call. Driver errors are returned unchanged, from
// here or from the cursor's Err. The cursor holds the underlying *sql.Rows
// until it is exhausted or closed.
//
// Example:
//
//	cur, err := datamap.SelectWithMapper(ctx, db, users, userMapper, datamap.IsNull(deletedAt))
//	if err != nil {
//	    return err
//	}
//	for u, ok := range cur.All() {
//	    if ok {
//	        fmt.Println(u.ID, u.Name)
//	    }
//	}
//	if err := cur.Err(); err != nil {
//	    return err
//	}
func SelectWithMapper[D any](ctx context.Context, q Querier, from ColumnSet, m Mapper[D], where Op, opts ...SelectOption) (*Cursor[D], error) {
	query, args, cols, err := buildSelect(from, m, where, opts)
	if err != nil {
		return nil, err
	}
	Logger().DebugContext(ctx, "datamap: select", "sql", query, "args", len(args))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Cursor[D]{rows: rows, layout: newRowLayout(cols), m: m}, nil
}

// SelectSQL renders the statement SelectWithMapper would issue for the same
// arguments, without running it.
func SelectSQL[D any](from ColumnSet, m Mapper[D], where Op, opts ...SelectOption) (string, []any, error) {
	query, args, _, err := buildSelect(from, m, where, opts)
	return query, args, err
}

func buildSelect[D any](from ColumnSet, m Mapper[D], where Op, opts []SelectOption) (string, []any, []Expr, error) {
	if from == nil {
		return "", nil, nil, ErrNilColumnSet
	}
	cols := uniqueColumns(m.NeededColumns())
	if len(cols) == 0 {
		return "", nil, nil, ErrNoColumns
	}
	cfg := selectConfig{limit: -1}
	for _, o := range opts {
		o(&cfg)
	}

	stmt := selectStmt{cols: cols, from: from, where: where, order: cfg.order, limit: cfg.limit, offset: cfg.offset}
	query, args, err := stmt.render(cfg.dialect)
	if err != nil {
		return "", nil, nil, err
	}
	return query, args, cols, nil
}

// SelectAll runs SelectWithMapper and collects every result. Absent values are
// kept as invalid entries.
func SelectAll[D any](ctx context.Context, q Querier, from ColumnSet, m Mapper[D], where Op, opts ...SelectOption) (out []sql.Null[D], err error) {
	cur, err := SelectWithMapper(ctx, q, from, m, where, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for d, ok := range cur.All() {
		out = append(out, sql.Null[D]{V: d, Valid: ok})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SelectOne returns the first mapped row, limiting the query to one row.
// It returns [sql.ErrNoRows] when nothing matches; the bool is the mapper's
// presence flag for that row.
func SelectOne[D any](ctx context.Context, q Querier, from ColumnSet, m Mapper[D], where Op, opts ...SelectOption) (out D, ok bool, err error) {
	cur, err := SelectWithMapper(ctx, q, from, m, where, append(opts[:len(opts):len(opts)], WithLimit(1))...)
	if err != nil {
		return out, false, err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return out, false, err
		}
		return out, false, sql.ErrNoRows
	}
	out, ok = cur.Data()
	return out, ok, nil
}

// Cursor is a single-pass sequence of mapped rows. It is not safe for
// concurrent use.
type Cursor[D any] struct {
	rows   *sql.Rows
	layout *rowLayout
	m      Mapper[D]

	data   D
	ok     bool
	n      int
	err    error
	closed bool
}

// Next advances to the next row and maps it. It returns false when the rows
// are exhausted or an error occurred; the cursor is closed in both cases.
// A panicking mapper also closes the cursor before the panic continues.
func (c *Cursor[D]) Next() bool {
	if c.closed {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.release()
		return false
	}
	row := c.layout.newRow()
	if err := c.rows.Scan(row.dests...); err != nil {
		c.err = err
		c.release()
		return false
	}

	defer func() {
		if p := recover(); p != nil {
			c.release()
			panic(p)
		}
	}()
	c.data, c.ok = c.m.RowToData(row)
	c.n++
	return true
}

// Data returns the value mapped by the last successful Next and whether the
// mapper reported it present.
func (c *Cursor[D]) Data() (D, bool) { return c.data, c.ok }

// Err returns the error, if any, that ended iteration.
func (c *Cursor[D]) Err() error { return c.err }

// Close releases the underlying rows. It is safe to call more than once.
func (c *Cursor[D]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	Logger().Debug("datamap: cursor closed", "rows", c.n)
	return err
}

func (c *Cursor[D]) release() {
	if err := c.Close(); err != nil && c.err == nil {
		c.err = err
	}
}

// All returns an iterator over the remaining rows, yielding each value with
// its presence flag. Breaking out of the loop closes the cursor; check Err
// after the loop.
func (c *Cursor[D]) All() iter.Seq2[D, bool] {
	return func(yield func(D, bool) bool) {
		defer c.release()
		for c.Next() {
			if !yield(c.data, c.ok) {
				return
			}
		}
	}
}
