package datamap

import (
	"errors"
	"fmt"
	"strings"
)

type sqlBuilder struct {
	d    Dialect
	sb   strings.Builder
	args []any
	err  error
}

func (b *sqlBuilder) write(s string)    { b.sb.WriteString(s) }
func (b *sqlBuilder) ident(name string) { b.sb.WriteString(b.d.Quote(name)) }
func (b *sqlBuilder) fail(err error)    { b.err = errors.Join(b.err, err) }

func (b *sqlBuilder) arg(v any) {
	b.sb.WriteByte('?')
	b.args = append(b.args, v)
}

func (b *sqlBuilder) column(c Expr) {
	b.ident(c.Table().name)
	b.sb.WriteByte('.')
	b.ident(c.Name())
}

func (b *sqlBuilder) finish() string {
	return rewritePlaceholders(b.sb.String(), b.d.Placeholder())
}

// SortOrder is the direction of an ORDER BY term.
type SortOrder uint8

const (
	// Asc sorts from the smallest value up.
	Asc SortOrder = iota
	// Desc sorts from the largest value down.
	Desc
)

type orderTerm struct {
	col   Expr
	order SortOrder
}

type selectStmt struct {
	cols   []Expr
	from   ColumnSet
	where  Op
	order  []orderTerm
	limit  int
	offset int
}

func (s *selectStmt) render(d Dialect) (string, []any, error) {
	for _, c := range s.cols {
		if !contains(s.from, c) {
			return "", nil, fmt.Errorf("%w: %s", ErrColumnNotInSet, c)
		}
	}
	for _, o := range s.order {
		if !contains(s.from, o.col) {
			return "", nil, fmt.Errorf("%w: order by %s", ErrColumnNotInSet, o.col)
		}
	}

	b := &sqlBuilder{d: d}
	b.write("SELECT ")
	for i, c := range s.cols {
		if i > 0 {
			b.write(", ")
		}
		b.column(c)
	}
	b.write(" FROM ")
	s.from.appendFrom(b)
	if s.where != nil {
		b.write(" WHERE ")
		s.where.appendSQL(b)
	}
	if len(s.order) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.write(", ")
			}
			b.column(o.col)
			if o.order == Desc {
				b.write(" DESC")
			} else {
				b.write(" ASC")
			}
		}
	}
	d.appendLimit(&b.sb, s.limit, s.offset, len(s.order) > 0)
	if b.err != nil {
		return "", nil, b.err
	}
	return b.finish(), b.args, nil
}

func renderInsert(d Dialect, t *Table, values []Assignment) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("datamap: insert into %s without values", t.name)
	}
	b := &sqlBuilder{d: d}
	b.write("INSERT INTO ")
	b.ident(t.name)
	b.write(" (")
	for i, a := range values {
		if a.col.Table() != t {
			return "", nil, fmt.Errorf("%w: %s is not a column of %s", ErrColumnNotInSet, a.col, t.name)
		}
		if i > 0 {
			b.write(", ")
		}
		b.ident(a.col.Name())
	}
	b.write(") VALUES (")
	for i, a := range values {
		if i > 0 {
			b.write(", ")
		}
		b.arg(a.val)
	}
	b.write(")")
	return b.finish(), b.args, nil
}
