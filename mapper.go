package datamap

import (
	"fmt"
	"slices"
)

// Mapper declares the columns it needs and rebuilds a value of D from a row
// that contains them.
//
// RowToData must be pure and deterministic and must only read the columns
// returned by NeededColumns. Its second result is false when the row holds no
// value for this mapper (for instance the NULL side of an outer join).
type Mapper[D any] interface {
	NeededColumns() []Expr
	RowToData(r Row) (D, bool)
}

type funcMapper[D any] struct {
	cols []Expr
	fn   func(Row) (D, bool)
}

func (m funcMapper[D]) NeededColumns() []Expr      { return slices.Clone(m.cols) }
func (m funcMapper[D]) RowToData(r Row) (D, bool) { return m.fn(r) }

// NewMapper returns a mapper that always yields a value.
//
//	users := datamap.NewTable("users")
//	id := datamap.Col[int64](users, "id")
//	name := datamap.Col[string](users, "name")
//
//	userMapper := datamap.NewMapper(func(r datamap.Row) User {
//	    return User{ID: datamap.Get(r, id), Name: datamap.Get(r, name)}
//	}, id, name)
func NewMapper[D any](fn func(Row) D, cols ...Expr) Mapper[D] {
	return funcMapper[D]{
		cols: uniqueColumns(cols),
		fn:   func(r Row) (D, bool) { return fn(r), true },
	}
}

// NewNullableMapper returns a mapper whose function decides absence itself.
func NewNullableMapper[D any](fn func(Row) (D, bool), cols ...Expr) Mapper[D] {
	return funcMapper[D]{cols: uniqueColumns(cols), fn: fn}
}

type nullableMapper[D any] struct {
	m    Mapper[D]
	cols []Expr
}

// Nullable wraps m so that a row where every needed column is NULL yields the
// absence marker instead of a value with zeroed fields.
func Nullable[D any](m Mapper[D]) Mapper[D] {
	return nullableMapper[D]{m: m, cols: uniqueColumns(m.NeededColumns())}
}

func (n nullableMapper[D]) NeededColumns() []Expr { return slices.Clone(n.cols) }

func (n nullableMapper[D]) RowToData(r Row) (D, bool) {
	for _, c := range n.cols {
		if !r.IsNull(c) {
			return n.m.RowToData(r)
		}
	}
	var zero D
	return zero, false
}

type mappedMapper[V, D any] struct {
	m  Mapper[V]
	fn func(V) D
}

// Map converts the values of m with fn. Absence is passed through. It is the
// usual way to lift a variant mapper into its sum type:
//
//	datamap.Map(circleMapper, func(c Circle) Shape { return c })
func Map[V, D any](m Mapper[V], fn func(V) D) Mapper[D] {
	return mappedMapper[V, D]{m: m, fn: fn}
}

func (m mappedMapper[V, D]) NeededColumns() []Expr { return m.m.NeededColumns() }

func (m mappedMapper[V, D]) RowToData(r Row) (D, bool) {
	v, ok := m.m.RowToData(r)
	if !ok {
		var zero D
		return zero, false
	}
	return m.fn(v), true
}

// Pair holds the values of two mappers read from the same row. SecondOK is
// false when the second mapper reported absence.
type Pair[A, B any] struct {
	First    A
	Second   B
	SecondOK bool
}

type zipMapper[A, B any] struct {
	a    Mapper[A]
	b    Mapper[B]
	cols []Expr
}

// Zip reads a and b from the same row, typically the two sides of a join. The
// pair is absent when a is absent.
func Zip[A, B any](a Mapper[A], b Mapper[B]) Mapper[Pair[A, B]] {
	cols := append(a.NeededColumns(), b.NeededColumns()...)
	return zipMapper[A, B]{a: a, b: b, cols: uniqueColumns(cols)}
}

func (z zipMapper[A, B]) NeededColumns() []Expr { return slices.Clone(z.cols) }

func (z zipMapper[A, B]) RowToData(r Row) (Pair[A, B], bool) {
	first, ok := z.a.RowToData(r)
	if !ok {
		return Pair[A, B]{}, false
	}
	second, secondOK := z.b.RowToData(r)
	return Pair[A, B]{First: first, Second: second, SecondOK: secondOK}, true
}

// Variant binds a discriminator value to the mapper for that shape of D.
type Variant[K comparable, D any] struct {
	tag K
	m   Mapper[D]
}

// Case returns the variant of a Sum mapper selected by tag.
func Case[K comparable, D any](tag K, m Mapper[D]) Variant[K, D] {
	return Variant[K, D]{tag: tag, m: m}
}

type sumMapper[K comparable, D any] struct {
	disc  *Column[K]
	cases map[K]Mapper[D]
	cols  []Expr
}

// Sum builds a mapper for a sum type whose variants are told apart by the
// discriminator column disc. The needed columns are disc plus the union of
// every variant's columns, so one query serves all variants.
//
// A NULL discriminator yields absence. A discriminator value with no variant
// panics with ErrUnknownVariant; registering a tag twice panics at
// construction.
func Sum[K comparable, D any](disc *Column[K], variants ...Variant[K, D]) Mapper[D] {
	s := sumMapper[K, D]{disc: disc, cases: make(map[K]Mapper[D], len(variants))}
	cols := []Expr{disc}
	for _, v := range variants {
		if _, dup := s.cases[v.tag]; dup {
			panic(fmt.Sprintf("datamap: variant %v of %s registered twice", v.tag, disc))
		}
		s.cases[v.tag] = v.m
		cols = append(cols, v.m.NeededColumns()...)
	}
	s.cols = uniqueColumns(cols)
	return s
}

func (s sumMapper[K, D]) NeededColumns() []Expr { return slices.Clone(s.cols) }

func (s sumMapper[K, D]) RowToData(r Row) (D, bool) {
	tag, ok := Lookup(r, s.disc)
	if !ok {
		var zero D
		return zero, false
	}
	m, found := s.cases[tag]
	if !found {
		violate(ErrUnknownVariant, "%s = %v", s.disc, tag)
	}
	return m.RowToData(r)
}

// PresenceCase selects a variant by the presence of a column, as in a row of
// several LEFT JOINs where exactly one joined table matched.
type PresenceCase[D any] struct {
	present Expr
	m       Mapper[D]
}

// When returns the variant chosen when present is not NULL.
func When[D any](present Expr, m Mapper[D]) PresenceCase[D] {
	return PresenceCase[D]{present: present, m: m}
}

type presenceMapper[D any] struct {
	cases []PresenceCase[D]
	cols  []Expr
}

// SumByPresence builds a sum-type mapper that routes each row to the single
// variant whose presence column is non-NULL. A row with no present variant is
// absent; a row with more than one panics with ErrAmbiguousVariant.
func SumByPresence[D any](cases ...PresenceCase[D]) Mapper[D] {
	var cols []Expr
	for _, c := range cases {
		cols = append(cols, c.present)
		cols = append(cols, c.m.NeededColumns()...)
	}
	return presenceMapper[D]{cases: slices.Clone(cases), cols: uniqueColumns(cols)}
}

func (p presenceMapper[D]) NeededColumns() []Expr { return slices.Clone(p.cols) }

func (p presenceMapper[D]) RowToData(r Row) (D, bool) {
	chosen := -1
	for i, c := range p.cases {
		if r.IsNull(c.present) {
			continue
		}
		if chosen >= 0 {
			violate(ErrAmbiguousVariant, "%s and %s", p.cases[chosen].present, c.present)
		}
		chosen = i
	}
	if chosen < 0 {
		var zero D
		return zero, false
	}
	return p.cases[chosen].m.RowToData(r)
}
