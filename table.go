package datamap

import (
	"fmt"
	"slices"
	"strings"
)

// ColumnSet is a queryable relational source: a table or a join of tables.
type ColumnSet interface {
	// Columns lists every column the source can provide.
	Columns() []Expr

	appendFrom(b *sqlBuilder)
	tables() []*Table
}

// Table is a named relation. Columns are declared on it with Col; the table is
// read-only once its columns are declared and may be shared freely.
type Table struct {
	name   string
	cols   []Expr
	byName map[string]Expr
}

// NewTable returns an empty table definition.
func NewTable(name string) *Table {
	return &Table{name: name, byName: make(map[string]Expr)}
}

func (t *Table) Name() string             { return t.name }
func (t *Table) Columns() []Expr          { return slices.Clone(t.cols) }
func (t *Table) tables() []*Table         { return []*Table{t} }
func (t *Table) appendFrom(b *sqlBuilder) { b.ident(t.name) }

// Column looks a declared column up by name, case-insensitively.
func (t *Table) Column(name string) (Expr, bool) {
	c, ok := t.byName[strings.ToLower(name)]
	return c, ok
}

func (t *Table) add(c Expr) {
	key := strings.ToLower(c.Name())
	if _, dup := t.byName[key]; dup {
		panic(fmt.Sprintf("datamap: column %s declared twice", c))
	}
	t.byName[key] = c
	t.cols = append(t.cols, c)
}

type joinKind uint8

const (
	innerJoin joinKind = iota
	leftJoin
)

// Join is a ColumnSet combining two sources on a condition.
type Join struct {
	kind        joinKind
	left, right ColumnSet
	on          Op
}

// InnerJoin joins left and right on the given condition.
func InnerJoin(left, right ColumnSet, on Op) *Join {
	return &Join{kind: innerJoin, left: left, right: right, on: on}
}

// LeftJoin keeps every row of left; the columns of right are NULL when no row
// matches. Pair it with Nullable mappers for the right-hand entity.
func LeftJoin(left, right ColumnSet, on Op) *Join {
	return &Join{kind: leftJoin, left: left, right: right, on: on}
}

func (j *Join) Columns() []Expr {
	return append(j.left.Columns(), j.right.Columns()...)
}

func (j *Join) tables() []*Table {
	return append(j.left.tables(), j.right.tables()...)
}

func (j *Join) appendFrom(b *sqlBuilder) {
	j.left.appendFrom(b)
	if j.kind == leftJoin {
		b.write(" LEFT JOIN ")
	} else {
		b.write(" INNER JOIN ")
	}
	if _, nested := j.right.(*Join); nested {
		b.write("(")
		j.right.appendFrom(b)
		b.write(")")
	} else {
		j.right.appendFrom(b)
	}
	b.write(" ON ")
	j.on.appendSQL(b)
}

func contains(cs ColumnSet, c Expr) bool {
	return slices.Contains(cs.tables(), c.Table())
}
