package datamap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		p := recover()
		require.NotNil(t, p, "expected a contract panic")
		ce, ok := p.(*ContractError)
		require.Truef(t, ok, "panic value %T is not *ContractError", p)
		require.ErrorIs(t, ce, target)
	}()
	fn()
}

func TestRow_GetLookup(t *testing.T) {
	r := NewRow(Set(userID, int64(7)), Set(userName, "Al"), SetNull(userDeleted))

	assert.Equal(t, int64(7), Get(r, userID))
	name, ok := Lookup(r, userName)
	assert.True(t, ok)
	assert.Equal(t, "Al", name)

	deleted, ok := Lookup(r, userDeleted)
	assert.False(t, ok)
	assert.Empty(t, deleted)
	assert.True(t, r.IsNull(userDeleted))
	assert.False(t, r.IsNull(userID))
	assert.Equal(t, []Expr{userID, userName, userDeleted}, r.Columns())
}

func TestRow_NilPointerIsNull(t *testing.T) {
	tbl := NewTable("t")
	note := Col[*string](tbl, "note")

	r := NewRow(Set(note, (*string)(nil)))
	assert.True(t, r.IsNull(note))

	s := "hi"
	r = NewRow(Set(note, &s))
	got, ok := Lookup(r, note)
	require.True(t, ok)
	assert.Equal(t, "hi", *got)
}

func TestRow_DynamicColumn(t *testing.T) {
	tbl := NewTable("t")
	anyCol := Col[any](tbl, "v")

	r := NewRow(SetNull(anyCol))
	v, ok := Lookup(r, anyCol)
	assert.False(t, ok)
	assert.Nil(t, v)

	r = NewRow(Set[any](anyCol, int64(3)))
	assert.Equal(t, int64(3), Get(r, anyCol))
}

func TestRow_UnfetchedColumnPanics(t *testing.T) {
	r := NewRow(Set(userID, int64(1)))
	assert.True(t, r.Has(userID))
	assert.False(t, r.Has(userName))

	contractPanic(t, ErrColumnNotFetched, func() { _ = Get(r, userName) })
	contractPanic(t, ErrColumnNotFetched, func() { _ = r.IsNull(userDeleted) })
	contractPanic(t, ErrColumnNotFetched, func() { _ = Get(Row{}, userID) })
}

func TestTable_Columns(t *testing.T) {
	assert.Equal(t, []Expr{userID, userName, userDeleted}, users.Columns())
	c, ok := users.Column("NAME")
	require.True(t, ok)
	assert.Equal(t, Expr(userName), c)
	_, ok = users.Column("missing")
	assert.False(t, ok)
	assert.Equal(t, "users.name", userName.String())
	assert.Same(t, users, userName.Table())
}

func TestTable_DuplicateColumnPanics(t *testing.T) {
	tbl := NewTable("dup")
	Col[int](tbl, "a")
	assert.Panics(t, func() { Col[string](tbl, "A") })
}

func TestJoin_Columns(t *testing.T) {
	j := LeftJoin(users, pets, EqCol(userID, petOwner))
	assert.Equal(t, []Expr{userID, userName, userDeleted, petID, petOwner, petName}, j.Columns())
	assert.True(t, contains(j, petName))
	assert.False(t, contains(j, shapeKind))
}
