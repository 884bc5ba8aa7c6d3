/*
Package datamap is a small layer over database/sql that selects exactly the
columns a mapper needs and turns each result row into a typed Go value. It
supports sum types ("GADTs"), where each variant of a value may need a
different subset of columns and a different way of being rebuilt.

# Overview

A table is declared once, with typed column handles:

	users := datamap.NewTable("users")
	id := datamap.Col[int64](users, "id")
	name := datamap.Col[string](users, "name")
	deletedAt := datamap.Col[*string](users, "deleted_at")

A Mapper names the columns it reads and rebuilds a value from a Row:

	userMapper := datamap.NewMapper(func(r datamap.Row) User {
	    return User{ID: datamap.Get(r, id), Name: datamap.Get(r, name)}
	}, id, name)

SelectWithMapper issues one SELECT of those columns, with an optional
predicate, and returns a lazy Cursor:

	cur, err := datamap.SelectWithMapper(ctx, db, users, userMapper, datamap.IsNull(deletedAt))

# Mappers

  - NewMapper and NewNullableMapper wrap a function and its columns.
  - NewStructMapper derives a mapper from `db` struct tags.
  - Nullable turns "every needed column is NULL" into absence, for the
    optional side of an outer join.
  - Map converts values; Zip reads two mappers from the same row.
  - Sum dispatches on a discriminator column; SumByPresence dispatches on
    which of several columns is non-NULL. Both request the union of their
    variants' columns.

Absence is reported by the second result of RowToData and passed through the
cursor unchanged; filtering it out is up to the caller.

# Contract violations

A mapper that reads a column it did not declare, a discriminator value with no
variant and a value that cannot be stored in a struct field are programming
errors. They panic with a *ContractError wrapping one of ErrColumnNotFetched,
ErrUnknownVariant, ErrAmbiguousVariant or ErrTypeMismatch. An open cursor is
closed before the panic leaves Next.

# Error handling

  - SelectWithMapper rejects a mapper with no columns (ErrNoColumns) and a
    column the source does not provide (ErrColumnNotInSet) before querying.
  - Driver errors propagate unchanged, from SelectWithMapper or Cursor.Err.
  - SelectOne returns sql.ErrNoRows when no row matches.

# Dialects

Queries are rendered for a Dialect: identifier quoting, placeholders ("?",
"$1", "@p1", ":1") and LIMIT/OFFSET syntax. The default is SQLite. Raw
fragments are written with '?' or :name parameters and rewritten to match.

# Concurrency

Tables, columns, predicates and mappers are immutable once built and can be
shared between goroutines. A Cursor belongs to one goroutine. Timeouts and
cancellation come from the context passed to the query.
*/
package datamap
