package datamap

import "database/sql"

// Row is one fetched record. It is only valid during the iteration step that
// produced it. Values are read through the typed column handles with Get and
// Lookup; reading a column that was not fetched panics with a *ContractError.
type Row struct {
	layout *rowLayout
	dests  []any
}

type rowLayout struct {
	cols  []Expr
	index map[Expr]int
}

func newRowLayout(cols []Expr) *rowLayout {
	l := &rowLayout{cols: cols, index: make(map[Expr]int, len(cols))}
	for i, c := range cols {
		l.index[c] = i
	}
	return l
}

func (l *rowLayout) newRow() Row {
	dests := make([]any, len(l.cols))
	for i, c := range l.cols {
		dests[i] = c.newDest()
	}
	return Row{layout: l, dests: dests}
}

// NewRow builds a row by hand from assignments, e.g. to exercise a mapper
// without a database.
func NewRow(values ...Assignment) Row {
	cols := make([]Expr, 0, len(values))
	for _, a := range values {
		cols = append(cols, a.col)
	}
	r := newRowLayout(uniqueColumns(cols)).newRow()
	for _, a := range values {
		a.col.fill(r.dest(a.col), a.val)
	}
	return r
}

func (r Row) dest(c Expr) any {
	var i int
	var ok bool
	if r.layout != nil {
		i, ok = r.layout.index[c]
	}
	if !ok {
		violate(ErrColumnNotFetched, "%s", c)
	}
	return r.dests[i]
}

// Has reports whether c was fetched into r.
func (r Row) Has(c Expr) bool {
	if r.layout == nil {
		return false
	}
	_, ok := r.layout.index[c]
	return ok
}

// IsNull reports whether c is NULL in r.
func (r Row) IsNull(c Expr) bool {
	_, ok := c.value(r.dest(c))
	return !ok
}

// Columns returns the columns fetched into r, in query order.
func (r Row) Columns() []Expr {
	if r.layout == nil {
		return nil
	}
	return append([]Expr(nil), r.layout.cols...)
}

// Get returns the value of c in r, or the zero value of T when it is NULL.
func Get[T any](r Row, c *Column[T]) T {
	v, _ := Lookup(r, c)
	return v
}

// Lookup returns the value of c in r and whether it is non-NULL.
func Lookup[T any](r Row, c *Column[T]) (T, bool) {
	n := r.dest(c).(*sql.Null[T])
	return n.V, n.Valid
}
