package datamap

// Op is a boolean expression evaluated by the database. Ops are immutable and
// may be reused across queries.
type Op interface {
	appendSQL(b *sqlBuilder)
}

type compareOp struct {
	col Expr
	op  string
	val any
}

func (o compareOp) appendSQL(b *sqlBuilder) {
	b.column(o.col)
	b.write(" " + o.op + " ")
	b.arg(o.val)
}

// Eq matches rows where c equals v.
func Eq[T any](c *Column[T], v T) Op { return compareOp{col: c, op: "=", val: v} }

// Ne matches rows where c differs from v. NULL never matches.
func Ne[T any](c *Column[T], v T) Op { return compareOp{col: c, op: "<>", val: v} }

// Lt matches rows where c is less than v.
func Lt[T any](c *Column[T], v T) Op { return compareOp{col: c, op: "<", val: v} }

// Le matches rows where c is less than or equal to v.
func Le[T any](c *Column[T], v T) Op { return compareOp{col: c, op: "<=", val: v} }

// Gt matches rows where c is greater than v.
func Gt[T any](c *Column[T], v T) Op { return compareOp{col: c, op: ">", val: v} }

// Ge matches rows where c is greater than or equal to v.
func Ge[T any](c *Column[T], v T) Op { return compareOp{col: c, op: ">=", val: v} }

// Like matches c against a LIKE pattern.
func Like[T any](c *Column[T], pattern string) Op {
	return compareOp{col: c, op: "LIKE", val: pattern}
}

type nullOp struct {
	col Expr
	not bool
}

func (o nullOp) appendSQL(b *sqlBuilder) {
	b.column(o.col)
	if o.not {
		b.write(" IS NOT NULL")
	} else {
		b.write(" IS NULL")
	}
}

// IsNull matches rows where c is NULL.
func IsNull(c Expr) Op { return nullOp{col: c} }

// IsNotNull matches rows where c is not NULL.
func IsNotNull(c Expr) Op { return nullOp{col: c, not: true} }

type inOp struct {
	col  Expr
	not  bool
	vals []any
}

func (o inOp) appendSQL(b *sqlBuilder) {
	b.column(o.col)
	if o.not {
		b.write(" NOT IN (")
	} else {
		b.write(" IN (")
	}
	if len(o.vals) == 0 {
		b.write("NULL")
	}
	for i, v := range o.vals {
		if i > 0 {
			b.write(", ")
		}
		b.arg(v)
	}
	b.write(")")
}

// In matches rows where c is one of vs. An empty list matches nothing.
func In[T any](c *Column[T], vs ...T) Op {
	return inOp{col: c, vals: boxAll(vs)}
}

// NotIn matches rows where c is none of vs.
func NotIn[T any](c *Column[T], vs ...T) Op {
	return inOp{col: c, not: true, vals: boxAll(vs)}
}

func boxAll[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

type colEqOp struct{ a, b Expr }

func (o colEqOp) appendSQL(b *sqlBuilder) {
	b.column(o.a)
	b.write(" = ")
	b.column(o.b)
}

// EqCol matches rows where two columns are equal; it is the usual join
// condition.
func EqCol[T any](a, b *Column[T]) Op { return colEqOp{a: a, b: b} }

type logicOp struct {
	sep   string
	empty string
	ops   []Op
}

func (o logicOp) appendSQL(b *sqlBuilder) {
	if len(o.ops) == 0 {
		b.write(o.empty)
		return
	}
	b.write("(")
	for i, op := range o.ops {
		if i > 0 {
			b.write(o.sep)
		}
		op.appendSQL(b)
	}
	b.write(")")
}

// And matches rows satisfying every op. Nil ops are skipped; And() is true.
func And(ops ...Op) Op { return logic(" AND ", "1 = 1", ops) }

// Or matches rows satisfying at least one op. Nil ops are skipped; Or() is false.
func Or(ops ...Op) Op { return logic(" OR ", "1 = 0", ops) }

func logic(sep, empty string, ops []Op) Op {
	kept := make([]Op, 0, len(ops))
	for _, op := range ops {
		if op != nil {
			kept = append(kept, op)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return logicOp{sep: sep, empty: empty, ops: kept}
}

type notOp struct{ op Op }

func (o notOp) appendSQL(b *sqlBuilder) {
	b.write("NOT (")
	o.op.appendSQL(b)
	b.write(")")
}

// Not negates op.
func Not(op Op) Op { return notOp{op: op} }

type rawOp struct {
	sql  string
	args []any
	err  error
}

func (o rawOp) appendSQL(b *sqlBuilder) {
	if o.err != nil {
		b.fail(o.err)
		return
	}
	b.write("(")
	b.write(o.sql)
	b.write(")")
	b.args = append(b.args, o.args...)
}

// Raw embeds a SQL fragment. Parameters are written as '?' and passed
// positionally, or, when params is exactly one struct or map[string]any,
// written as :name and bound by name (slices expand, an empty slice becomes
// NULL). Placeholders are rewritten for the query's dialect.
//
//	datamap.Raw("created_at >= :since AND tenant IN (:tenants)",
//	    map[string]any{"since": cutoff, "tenants": []int{1, 2}})
//
// Binding errors surface when the query is issued.
func Raw(fragment string, params ...any) Op {
	if len(params) == 1 && looksBindable(params[0]) {
		q, args, err := bindNamed(fragment, params[0])
		return rawOp{sql: q, args: args, err: err}
	}
	return rawOp{sql: fragment, args: params}
}
