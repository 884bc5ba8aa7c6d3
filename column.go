package datamap

import (
	"database/sql"
	"fmt"
	"reflect"
)

// Expr is a column handle. The set of implementations is closed: every Expr is
// a *Column[T] created with Col.
type Expr interface {
	// Name is the unquoted column name.
	Name() string
	// Table is the table the column belongs to.
	Table() *Table
	String() string

	goType() reflect.Type
	newDest() any
	value(dest any) (any, bool)
	fill(dest any, v any)
}

// Column is a typed handle on one table attribute. T is the Go type a fetched
// value is converted to; database NULL is tracked separately, so T does not
// need to be a pointer for nullable columns.
type Column[T any] struct {
	table *Table
	name  string
}

// Col declares a column of type T on t and returns its handle. Declaring the
// same name twice on one table panics.
func Col[T any](t *Table, name string) *Column[T] {
	c := &Column[T]{table: t, name: name}
	t.add(c)
	return c
}

func (c *Column[T]) Name() string   { return c.name }
func (c *Column[T]) Table() *Table  { return c.table }
func (c *Column[T]) String() string { return c.table.name + "." + c.name }

func (c *Column[T]) goType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (c *Column[T]) newDest() any { return new(sql.Null[T]) }

func (c *Column[T]) value(dest any) (any, bool) {
	n := dest.(*sql.Null[T])
	return n.V, n.Valid
}

func (c *Column[T]) fill(dest any, v any) {
	n := dest.(*sql.Null[T])
	if v == nil {
		*n = sql.Null[T]{}
		return
	}
	t, ok := v.(T)
	if !ok {
		violate(ErrTypeMismatch, "%T into column %s of %s", v, c, c.goType())
	}
	rv := reflect.ValueOf(v)
	*n = sql.Null[T]{V: t, Valid: !(rv.Kind() == reflect.Pointer && rv.IsNil())}
}

// uniqueColumns drops repeated handles, keeping the first occurrence order.
func uniqueColumns(cols []Expr) []Expr {
	seen := make(map[Expr]struct{}, len(cols))
	out := make([]Expr, 0, len(cols))
	for _, c := range cols {
		if c == nil {
			panic(fmt.Sprintf("datamap: nil column in %v", cols))
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
