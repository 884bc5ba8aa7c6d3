package datamap

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder selects the positional parameter style for a target database.
//
// Common choices:
//   - PlaceholderQuestion   → "?"           (MySQL, SQLite, DuckDB, ClickHouse)
//   - PlaceholderDollar     → "$1, $2, …"  (PostgreSQL)
//   - PlaceholderAtP        → "@p1, @p2…"  (SQL Server)
//   - PlaceholderColonNum   → ":1, :2, …"  (Oracle)
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

func (ph Placeholder) appendTo(out []byte, n int) []byte {
	switch ph {
	case PlaceholderDollar:
		out = append(out, '$')
	case PlaceholderAtP:
		out = append(out, '@', 'p')
	case PlaceholderColonNum:
		out = append(out, ':')
	default:
		return append(out, '?')
	}
	return strconv.AppendInt(out, int64(n), 10)
}

// ErrNilParams is returned when a raw fragment is bound against a nil
// struct pointer.
var ErrNilParams = errors.New("datamap: named bind: nil params")

// skipInert reports whether s[i:] starts a region that must be copied verbatim:
// a string literal, a quoted identifier, a comment or a PostgreSQL $tag$ block.
// On an unterminated region the returned end is len(s).
func skipInert(s string, i int) (end int, ok bool, err error) {
	switch s[i] {
	case '\'', '"', '`':
		end, err = skipQuoted(s, i+1, s[i])
		return end, true, err
	case '-':
		if strings.HasPrefix(s[i:], "--") {
			if j := strings.IndexByte(s[i+2:], '\n'); j >= 0 {
				return i + 2 + j + 1, true, nil
			}
			return len(s), true, nil
		}
	case '/':
		if strings.HasPrefix(s[i:], "/*") {
			if j := strings.Index(s[i+2:], "*/"); j >= 0 {
				return i + 2 + j + 2, true, nil
			}
			return len(s), true, fmt.Errorf("datamap: unterminated block comment")
		}
	case '$':
		return skipDollarQuoted(s, i)
	}
	return i, false, nil
}

// skipQuoted scans to the closing quote q; a doubled quote is an escape.
func skipQuoted(s string, i int, q byte) (int, error) {
	for i < len(s) {
		c := s[i]
		i++
		if c != q {
			continue
		}
		if i < len(s) && s[i] == q {
			i++
			continue
		}
		return i, nil
	}
	return len(s), fmt.Errorf("datamap: unterminated %c-quoted text", q)
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL).
func skipDollarQuoted(s string, i int) (int, bool, error) {
	j := i + 1
	for j < len(s) && s[j] != '$' && isTagChar(rune(s[j])) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return i, false, nil
	}
	tag := s[i : j+1]
	idx := strings.Index(s[j+1:], tag)
	if idx < 0 {
		return len(s), true, fmt.Errorf("datamap: unterminated dollar-quoted string")
	}
	return j + 1 + idx + len(tag), true, nil
}

func isTagChar(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// rewritePlaceholders turns every '?' outside literals and comments into the
// positional style ph.
func rewritePlaceholders(query string, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	out := make([]byte, 0, len(query)+16)
	arg := 1
	for i := 0; i < len(query); {
		if end, ok, _ := skipInert(query, i); ok {
			out = append(out, query[i:end]...)
			i = end
			continue
		}
		if query[i] == '?' {
			out = ph.appendTo(out, arg)
			arg++
		} else {
			out = append(out, query[i])
		}
		i++
	}
	return string(out)
}

type nameToken struct {
	name       string
	start, end int
}

func findNamedParams(query string) ([]nameToken, error) {
	var out []nameToken
	for i := 0; i < len(query); {
		end, ok, err := skipInert(query, i)
		if err != nil {
			return nil, err
		}
		if ok {
			i = end
			continue
		}
		if query[i] == ':' {
			if strings.HasPrefix(query[i:], "::") {
				i += 2 // PG cast
				continue
			}
			if name, end := parseIdent(query, i+1); name != "" {
				out = append(out, nameToken{name: name, start: i, end: end})
				i = end
				continue
			}
		}
		i++
	}
	return out, nil
}

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		i += w
	}
	return s[start:i], i
}

// looksBindable reports whether v can supply :named parameters.
func looksBindable(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true // reported as ErrNilParams by bindNamed
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Map {
		return rv.Type().Key().Kind() == reflect.String
	}
	if rv.Kind() != reflect.Struct || rv.Type() == timeType {
		return false
	}
	return !reflect.PointerTo(rv.Type()).Implements(valuerType)
}

// bindNamed replaces :name tokens with '?' and returns the matching args.
// Slices and arrays expand to one placeholder per element ([]byte stays
// scalar); an empty slice becomes NULL.
func bindNamed(query string, params any) (string, []any, error) {
	toks, err := findNamedParams(query)
	if err != nil {
		return "", nil, err
	}
	if len(toks) == 0 {
		return query, nil, nil
	}
	lookup, err := paramLookup(params)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.Grow(len(query))
	args := make([]any, 0, len(toks))
	last := 0
	for _, t := range toks {
		b.WriteString(query[last:t.start])
		last = t.end

		val, ok := lookup(strings.ToLower(t.name))
		if !ok {
			return "", nil, fmt.Errorf("datamap: named bind: missing value for :%s", t.name)
		}
		rv := reflect.ValueOf(val)
		if !expands(rv) {
			b.WriteByte('?')
			args = append(args, val)
			continue
		}
		if rv.Len() == 0 {
			b.WriteString("NULL")
			continue
		}
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('?')
			args = append(args, rv.Index(i).Interface())
		}
	}
	b.WriteString(query[last:])
	return b.String(), args, nil
}

func expands(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// paramLookup resolves lower-case parameter names against a map[string]any-like
// map or a struct, using the same `db` tag rules as struct mapping.
func paramLookup(params any) (func(string) (any, bool), error) {
	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, ErrNilParams
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		m := make(map[string]any, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			m[strings.ToLower(it.Key().String())] = it.Value().Interface()
		}
		return func(name string) (any, bool) {
			v, ok := m[name]
			return v, ok
		}, nil
	case reflect.Struct:
		idx := structIndex(rv.Type())
		return func(name string) (any, bool) {
			path, ok := idx.byName[name]
			if !ok {
				return nil, false
			}
			fv, ok := fieldByPath(rv, path)
			if !ok {
				return nil, false
			}
			return fv.Interface(), true
		}, nil
	}
	return nil, fmt.Errorf("datamap: named bind: params must be struct or map[string]any, got %T", params)
}
