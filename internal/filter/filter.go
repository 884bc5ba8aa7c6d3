// Package filter parses the textual predicates accepted by the datamap CLI,
// such as
//
//	deleted_at IS NULL AND (name LIKE 'B%' OR id IN (1, 2, 3))
//
// into datamap predicates. Keywords are case-insensitive; strings use single
// quotes with '' as the escape for a quote.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/go-mizu/datamap"
)

// Resolver maps a column name from the filter text to a column handle.
type Resolver func(name string) (*datamap.Column[any], error)

// TableResolver resolves bare and table-qualified names against the
// dynamically typed columns of t.
func TableResolver(t *datamap.Table) Resolver {
	return func(name string) (*datamap.Column[any], error) {
		if tbl, col, ok := strings.Cut(name, "."); ok {
			if !strings.EqualFold(tbl, t.Name()) {
				return nil, fmt.Errorf("unknown table %q", tbl)
			}
			name = col
		}
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		dyn, ok := c.(*datamap.Column[any])
		if !ok {
			return nil, fmt.Errorf("column %q is not dynamically typed", name)
		}
		return dyn, nil
	}
}

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|IS|NULL|IN|LIKE|TRUE|FALSE)\b`},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?`},
	{Name: "Operator", Pattern: `<>|!=|<=|>=|=|<|>`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Expression is a disjunction of conjunctions.
type Expression struct {
	Or []*AndExpr `@@ ( "OR" @@ )*`
}

type AndExpr struct {
	And []*UnaryExpr `@@ ( "AND" @@ )*`
}

type UnaryExpr struct {
	Not     *UnaryExpr `  "NOT" @@`
	Primary *Primary   `| @@`
}

type Primary struct {
	Group     *Expression `  "(" @@ ")"`
	Condition *Condition  `| @@`
}

type Condition struct {
	Pos     lexer.Position
	Column  string   `@Ident`
	IsNull  *IsNull  `( @@`
	In      *InList  `| @@`
	Like    *Like    `| @@`
	Compare *Compare `| @@ )`
}

type IsNull struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

type InList struct {
	Not    bool     `@"NOT"? "IN"`
	Values []*Value `"(" @@ ( "," @@ )* ")"`
}

type Like struct {
	Not     bool   `@"NOT"? "LIKE"`
	Pattern string `@String`
}

type Compare struct {
	Op    string `@Operator`
	Value *Value `@@`
}

type Value struct {
	Pos    lexer.Position
	String *string `  @String`
	Number *string `| @Number`
	Bool   *string `| @("TRUE" | "FALSE")`
	Null   bool    `| @"NULL"`
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(3),
)

// Parse parses src and builds the predicate it describes. An empty src yields
// a nil predicate, which selects every row.
func Parse(src string, resolve Resolver) (datamap.Op, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	ast, err := parser.ParseString("where", src)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return ast.build(resolve)
}

func (e *Expression) build(resolve Resolver) (datamap.Op, error) {
	ops := make([]datamap.Op, 0, len(e.Or))
	for _, a := range e.Or {
		op, err := a.build(resolve)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return datamap.Or(ops...), nil
}

func (a *AndExpr) build(resolve Resolver) (datamap.Op, error) {
	ops := make([]datamap.Op, 0, len(a.And))
	for _, u := range a.And {
		op, err := u.build(resolve)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return datamap.And(ops...), nil
}

func (u *UnaryExpr) build(resolve Resolver) (datamap.Op, error) {
	if u.Not != nil {
		op, err := u.Not.build(resolve)
		if err != nil {
			return nil, err
		}
		return datamap.Not(op), nil
	}
	if u.Primary.Group != nil {
		return u.Primary.Group.build(resolve)
	}
	return u.Primary.Condition.build(resolve)
}

func (c *Condition) build(resolve Resolver) (datamap.Op, error) {
	col, err := resolve(c.Column)
	if err != nil {
		return nil, fmt.Errorf("filter: %s: %w", c.Pos, err)
	}

	switch {
	case c.IsNull != nil:
		if c.IsNull.Not {
			return datamap.IsNotNull(col), nil
		}
		return datamap.IsNull(col), nil

	case c.In != nil:
		vs := make([]any, 0, len(c.In.Values))
		for _, v := range c.In.Values {
			x, err := v.literal()
			if err != nil {
				return nil, err
			}
			vs = append(vs, x)
		}
		if c.In.Not {
			return datamap.NotIn(col, vs...), nil
		}
		return datamap.In(col, vs...), nil

	case c.Like != nil:
		op := datamap.Like(col, unquote(c.Like.Pattern))
		if c.Like.Not {
			return datamap.Not(op), nil
		}
		return op, nil
	}

	v, err := c.Compare.Value.literal()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("filter: %s: compare with NULL using IS NULL", c.Pos)
	}
	switch c.Compare.Op {
	case "=":
		return datamap.Eq(col, v), nil
	case "<>", "!=":
		return datamap.Ne(col, v), nil
	case "<":
		return datamap.Lt(col, v), nil
	case "<=":
		return datamap.Le(col, v), nil
	case ">":
		return datamap.Gt(col, v), nil
	case ">=":
		return datamap.Ge(col, v), nil
	}
	return nil, fmt.Errorf("filter: %s: unknown operator %q", c.Pos, c.Compare.Op)
}

// literal returns the Go value of v: string, int64, float64, bool or nil.
func (v *Value) literal() (any, error) {
	switch {
	case v.String != nil:
		return unquote(*v.String), nil
	case v.Number != nil:
		if !strings.Contains(*v.Number, ".") {
			if n, err := strconv.ParseInt(*v.Number, 10, 64); err == nil {
				return n, nil
			}
		}
		f, err := strconv.ParseFloat(*v.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("filter: %s: %w", v.Pos, err)
		}
		return f, nil
	case v.Bool != nil:
		return strings.EqualFold(*v.Bool, "true"), nil
	}
	return nil, nil
}

func unquote(s string) string {
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
}
