package datamap

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// StructOption configures NewStructMapper.
type StructOption func(*structConfig)

type structConfig struct {
	strict bool
}

// Strict makes every mappable field of the struct require a matching column.
// By default unmatched fields keep their zero value.
func Strict() StructOption {
	return func(c *structConfig) { c.strict = true }
}

type fieldStep struct {
	col   Expr
	fpath []int
}

type structMapper[T any] struct {
	base  reflect.Type // T with pointers removed
	ptr   bool         // T is *struct
	cols  []Expr
	steps []fieldStep
}

// NewStructMapper derives a mapper for the struct type T (or *T) from the
// columns of cs.
//
// Mapping rules:
//   - Fields bind by `db:"name"` first; otherwise case-insensitive field ←→ column name.
//   - `db:"table.name"` picks a column of one table when a join has the name twice.
//   - Nested structs can be flattened with `db:",inline"`; anonymous embedded structs are flattened.
//   - `db:"-"` skips a field.
//   - NULL leaves a field at its zero value (nil for pointer fields).
//
// Fields are checked against the column types here, so a mismatch is reported
// once rather than on every row. The needed columns are the matched ones in
// field order.
func NewStructMapper[T any](cs ColumnSet, opts ...StructOption) (Mapper[T], error) {
	var cfg structConfig
	for _, o := range opts {
		o(&cfg)
	}

	rt := reflect.TypeOf((*T)(nil)).Elem()
	if !isStruct(rt) {
		return nil, fmt.Errorf("datamap: struct mapper needs a struct type, got %s", rt)
	}
	m := &structMapper[T]{base: derefPtr(rt), ptr: rt.Kind() == reflect.Pointer}
	if m.ptr && rt.Elem().Kind() == reflect.Pointer {
		return nil, fmt.Errorf("datamap: struct mapper does not support %s", rt)
	}

	resolve := columnResolver(cs)
	idx := structIndex(m.base)
	for _, name := range idx.names {
		col, err := resolve(name)
		if err != nil {
			return nil, err
		}
		if col == nil {
			if cfg.strict {
				return nil, fmt.Errorf("datamap: strict: no column for field %q of %s", name, m.base)
			}
			continue
		}
		path := idx.byName[name]
		if err := checkAssignable(col.goType(), fieldTypeByPath(m.base, path)); err != nil {
			return nil, fmt.Errorf("datamap: field %q of %s: %w", name, m.base, err)
		}
		m.cols = append(m.cols, col)
		m.steps = append(m.steps, fieldStep{col: col, fpath: path})
	}
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("%w: no field of %s matches a column", ErrNoColumns, m.base)
	}
	m.cols = uniqueColumns(m.cols)
	return m, nil
}

// MustStructMapper is like NewStructMapper but panics on error. It suits
// package-level mapper definitions.
func MustStructMapper[T any](cs ColumnSet, opts ...StructOption) Mapper[T] {
	m, err := NewStructMapper[T](cs, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *structMapper[T]) NeededColumns() []Expr { return append([]Expr(nil), m.cols...) }

func (m *structMapper[T]) RowToData(r Row) (T, bool) {
	root := reflect.New(m.base)
	for _, st := range m.steps {
		v, ok := st.col.value(r.dest(st.col))
		if !ok {
			continue
		}
		if err := assignValue(fieldByPathAlloc(root.Elem(), st.fpath), v); err != nil {
			violate(ErrTypeMismatch, "%s: %v", st.col, err)
		}
	}
	if m.ptr {
		return root.Interface().(T), true
	}
	return root.Elem().Interface().(T), true
}

// columnResolver finds a column by lower-case name. A nil column with a nil
// error means no match; a bare name shared by several tables is an error.
func columnResolver(cs ColumnSet) func(name string) (Expr, error) {
	bare := make(map[string][]Expr)
	qualified := make(map[string]Expr)
	for _, c := range cs.Columns() {
		n := toLowerAscii(c.Name())
		bare[n] = append(bare[n], c)
		qualified[toLowerAscii(c.Table().Name())+"."+n] = c
	}
	return func(name string) (Expr, error) {
		if strings.Contains(name, ".") {
			return qualified[name], nil
		}
		switch cols := bare[name]; len(cols) {
		case 0:
			return nil, nil
		case 1:
			return cols[0], nil
		default:
			return nil, fmt.Errorf("datamap: column %q is ambiguous; tag the field as table.%s", name, name)
		}
	}
}

// ---------------- Struct indexing & tags ----------------

type fieldIndex struct {
	names  []string         // lower-case names in field order
	byName map[string][]int // lower-case name -> index path
}

var structIndexCache sync.Map // reflect.Type -> *fieldIndex

func structIndex(rt reflect.Type) *fieldIndex {
	if v, ok := structIndexCache.Load(rt); ok {
		return v.(*fieldIndex)
	}
	fi := buildStructIndex(rt)
	v, _ := structIndexCache.LoadOrStore(rt, fi)
	return v.(*fieldIndex)
}

func buildStructIndex(rt reflect.Type) *fieldIndex {
	idx := &fieldIndex{byName: make(map[string][]int)}

	var walk func(t reflect.Type, base []int, forceInline bool)
	walk = func(t reflect.Type, base []int, forceInline bool) {
		t = derefPtr(t)
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous { // unexported, non-anonymous
				continue
			}
			tag := sf.Tag.Get("db")
			name, inline, omit := parseTag(tag)
			if omit {
				continue
			}
			if sf.Anonymous && sf.PkgPath != "" && sf.Type.Kind() == reflect.Pointer {
				continue // cannot be allocated through reflection
			}
			path := append(append([]int(nil), base...), i)

			if (inline || (sf.Anonymous && (forceInline || tag == ""))) && isStruct(sf.Type) && !isLeafStruct(sf.Type) {
				walk(sf.Type, path, inline)
				continue
			}
			if sf.PkgPath != "" { // unexported embedded non-struct
				continue
			}
			if name == "" {
				name = sf.Name
			}
			lc := toLowerAscii(name)
			if _, seen := idx.byName[lc]; !seen {
				idx.byName[lc] = path
				idx.names = append(idx.names, lc)
			}
		}
	}
	walk(rt, nil, false)
	return idx
}

// parseTag supports: "-", "col", ",inline", "col,inline", "inline,col".
func parseTag(tag string) (name string, inline bool, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	for _, part := range strings.Split(tag, ",") {
		switch {
		case part == "inline":
			inline = true
		case part != "" && name == "":
			name = part
		}
	}
	return name, inline, false
}

// ---------------- Assignment ----------------

// checkAssignable reports whether values of column type from can be stored in
// a field of type to by assignValue.
func checkAssignable(from, to reflect.Type) error {
	if from.Kind() == reflect.Interface {
		return nil // dynamic; checked per row
	}
	for from.Kind() == reflect.Pointer && !from.AssignableTo(to) {
		from = from.Elem()
	}
	switch {
	case from.AssignableTo(to):
		return nil
	case implementsScanner(to):
		return nil
	case to.Kind() == reflect.Pointer:
		return checkAssignable(from, to.Elem())
	case convertible(from, to):
		return nil
	}
	return fmt.Errorf("%w: %s into %s", ErrTypeMismatch, from, to)
}

// assignValue stores a non-NULL column value into dst.
func assignValue(dst reflect.Value, v any) error {
	sv := reflect.ValueOf(v)
	if !sv.IsValid() {
		return nil
	}
	for sv.Kind() == reflect.Pointer && !sv.Type().AssignableTo(dst.Type()) {
		if sv.IsNil() {
			return nil
		}
		sv = sv.Elem()
	}
	switch {
	case sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
	case implementsScanner(dst.Type()):
		return dst.Addr().Interface().(sql.Scanner).Scan(sv.Interface())
	case dst.Kind() == reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := assignValue(elem.Elem(), sv.Interface()); err != nil {
			return err
		}
		dst.Set(elem)
	case convertible(sv.Type(), dst.Type()):
		dst.Set(sv.Convert(dst.Type()))
	case isNumber(sv.Kind()) && isNumber(dst.Kind()):
		return assignNumber(dst, sv)
	default:
		return fmt.Errorf("%w: %s into %s", ErrTypeMismatch, sv.Type(), dst.Type())
	}
	return nil
}

// convertible limits reflect conversions to the lossless ones: numeric
// widenings within a kind (int to int, uint to uint, float to float, uint to a
// wider int), named string types and []byte <-> string. reflect would also
// truncate floats and turn an int into a one-rune string.
func convertible(from, to reflect.Type) bool {
	fk, tk := from.Kind(), to.Kind()
	switch {
	case isNumber(fk) && isNumber(tk):
		return widens(from, to)
	case fk == reflect.String && tk == reflect.String, fk == reflect.Bool && tk == reflect.Bool:
		return true
	case isBytes(from) && tk == reflect.String, fk == reflect.String && isBytes(to):
		return true
	}
	return fk == tk && fk == reflect.Struct && from.ConvertibleTo(to)
}

type numClass uint8

const (
	notNumber numClass = iota
	signedNum
	unsignedNum
	floatNum
)

func classOf(k reflect.Kind) numClass {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedNum
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsignedNum
	case reflect.Float32, reflect.Float64:
		return floatNum
	}
	return notNumber
}

func isNumber(k reflect.Kind) bool { return classOf(k) != notNumber }

// widens reports whether every value of from fits in to.
func widens(from, to reflect.Type) bool {
	fc, tc := classOf(from.Kind()), classOf(to.Kind())
	switch {
	case fc == tc:
		return to.Bits() >= from.Bits()
	case fc == unsignedNum && tc == signedNum:
		return to.Bits() > from.Bits()
	}
	return false
}

// assignNumber stores a number whose type is only known per row, as with
// Column[any]. Values that would lose their integer part, their sign or
// overflow the field are rejected.
func assignNumber(dst, sv reflect.Value) error {
	fail := func() error {
		return fmt.Errorf("%w: %v (%s) does not fit %s", ErrTypeMismatch, sv.Interface(), sv.Type(), dst.Type())
	}
	switch classOf(dst.Kind()) {
	case signedNum:
		var n int64
		switch classOf(sv.Kind()) {
		case signedNum:
			n = sv.Int()
		case unsignedNum:
			u := sv.Uint()
			if u > math.MaxInt64 {
				return fail()
			}
			n = int64(u)
		default:
			return fail()
		}
		if dst.OverflowInt(n) {
			return fail()
		}
		dst.SetInt(n)
	case unsignedNum:
		var u uint64
		switch classOf(sv.Kind()) {
		case signedNum:
			n := sv.Int()
			if n < 0 {
				return fail()
			}
			u = uint64(n)
		case unsignedNum:
			u = sv.Uint()
		default:
			return fail()
		}
		if dst.OverflowUint(u) {
			return fail()
		}
		dst.SetUint(u)
	case floatNum:
		var f float64
		switch classOf(sv.Kind()) {
		case signedNum:
			f = float64(sv.Int())
		case unsignedNum:
			f = float64(sv.Uint())
		default:
			f = sv.Float()
		}
		if dst.OverflowFloat(f) {
			return fail()
		}
		dst.SetFloat(f)
	default:
		return fail()
	}
	return nil
}

func isBytes(t reflect.Type) bool { return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 }

// ---------------- Type helpers ----------------

func isStruct(t reflect.Type) bool { return derefPtr(t).Kind() == reflect.Struct }

// isLeafStruct reports struct types that are values, not field groups.
func isLeafStruct(t reflect.Type) bool {
	t = derefPtr(t)
	return t == timeType || implementsScanner(t)
}

func derefPtr(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func implementsScanner(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(scannerType)
}

func fieldTypeByPath(root reflect.Type, fpath []int) reflect.Type {
	t := root
	for _, i := range fpath {
		t = derefPtr(t).Field(i).Type
	}
	return t
}

// fieldByPathAlloc walks fpath, allocating nil embedded pointers so the final
// field is addressable. The final field itself is left untouched.
func fieldByPathAlloc(root reflect.Value, fpath []int) reflect.Value {
	v := root
	for _, i := range fpath {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

// fieldByPath walks fpath without allocating; it fails on a nil pointer.
func fieldByPath(root reflect.Value, fpath []int) (reflect.Value, bool) {
	v := root
	for _, i := range fpath {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, true
}

func toLowerAscii(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if 'A' <= b[j] && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
