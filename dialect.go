package datamap

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between database engines that matter
// when rendering a SELECT or INSERT: identifier quoting, placeholders and
// row limiting.
type Dialect int

const (
	// DialectSQLite quotes with "x" and binds with ?. It is the default.
	DialectSQLite Dialect = iota
	// DialectPostgres quotes with "x" and binds with $1, $2, ...
	DialectPostgres
	// DialectMySQL quotes with backticks and binds with ?.
	DialectMySQL
	// DialectSQLServer quotes with [x], binds with @p1 and limits with OFFSET/FETCH.
	DialectSQLServer
	// DialectOracle quotes with "x", binds with :1 and limits with OFFSET/FETCH.
	DialectOracle
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLServer:
		return "sqlserver"
	case DialectOracle:
		return "oracle"
	default:
		return "sqlite"
	}
}

// DialectFor picks a Dialect from a database/sql driver name.
//
// Examples:
//
//	d := datamap.DialectFor("pgx")       // => DialectPostgres
//	d := datamap.DialectFor("sqlserver") // => DialectSQLServer
//	d := datamap.DialectFor("sqlite3")   // => DialectSQLite
func DialectFor(driverName string) Dialect {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql", "lib/pq", "pg":
		return DialectPostgres
	case "mysql", "mariadb":
		return DialectMySQL
	case "sqlserver", "mssql":
		return DialectSQLServer
	case "godror", "oracle", "goracle":
		return DialectOracle
	default:
		return DialectSQLite
	}
}

// Placeholder returns the positional parameter style of d.
func (d Dialect) Placeholder() Placeholder {
	switch d {
	case DialectPostgres:
		return PlaceholderDollar
	case DialectSQLServer:
		return PlaceholderAtP
	case DialectOracle:
		return PlaceholderColonNum
	default:
		return PlaceholderQuestion
	}
}

// Quote quotes an identifier, doubling any embedded closing quote.
func (d Dialect) Quote(ident string) string {
	open, closing := `"`, `"`
	switch d {
	case DialectMySQL:
		open, closing = "`", "`"
	case DialectSQLServer:
		open, closing = "[", "]"
	}
	return open + strings.ReplaceAll(ident, closing, closing+closing) + closing
}

// appendLimit writes the row-limiting clause. limit < 0 and offset <= 0 mean
// "not set".
func (d Dialect) appendLimit(b *strings.Builder, limit, offset int, ordered bool) {
	if limit < 0 && offset <= 0 {
		return
	}
	switch d {
	case DialectSQLServer, DialectOracle:
		if d == DialectSQLServer && !ordered {
			b.WriteString(" ORDER BY (SELECT NULL)")
		}
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(max(offset, 0)))
		b.WriteString(" ROWS")
		if limit >= 0 {
			b.WriteString(" FETCH NEXT ")
			b.WriteString(strconv.Itoa(limit))
			b.WriteString(" ROWS ONLY")
		}
		return
	}

	switch {
	case limit >= 0:
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	case d == DialectSQLite:
		b.WriteString(" LIMIT -1")
	case d == DialectMySQL:
		b.WriteString(" LIMIT 18446744073709551615")
	}
	if offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(offset))
	}
}
