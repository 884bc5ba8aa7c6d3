package datamap

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sqliteSchema = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, deleted_at TEXT);
CREATE TABLE pets (id INTEGER PRIMARY KEY, owner_id INTEGER NOT NULL, name TEXT NOT NULL);
CREATE TABLE shapes (id INTEGER PRIMARY KEY, kind TEXT, radius REAL, width REAL, height REAL);
`

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

func seedUsers(t *testing.T, db *sql.DB, rows ...[]Assignment) {
	t.Helper()
	err := InTx(context.Background(), db, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := Insert(context.Background(), tx, DialectSQLite, users, r...); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func user(id int64, name string, deletedAt *string) []Assignment {
	a := []Assignment{Set(userID, id), Set(userName, name)}
	if deletedAt == nil {
		return append(a, SetNull(userDeleted))
	}
	return append(a, Set(userDeleted, *deletedAt))
}

func ptr[T any](v T) *T { return &v }

func presentValues[D any](t *testing.T, rows []sql.Null[D]) []D {
	t.Helper()
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		require.True(t, r.Valid, "unexpected absent row")
		out = append(out, r.V)
	}
	return out
}

func TestSQLite_ActiveUsers(t *testing.T) {
	db := openSQLite(t)
	seedUsers(t, db, user(1, "Al", nil), user(2, "Bo", ptr("2020-01-01")))

	got, err := SelectAll(context.Background(), db, users, userMapper, IsNull(userDeleted))
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: 1, Name: "Al"}}, presentValues(t, got))
}

func TestSQLite_PredicatePassThrough(t *testing.T) {
	db := openSQLite(t)
	names := []string{"Al", "Bo", "Bea", "Cy", "Bud", "Di"}
	var rows [][]Assignment
	for i, n := range names {
		rows = append(rows, user(int64(i+1), n, nil))
	}
	seedUsers(t, db, rows...)

	pred := And(Gt(userID, int64(2)), Like(userName, "B%"))
	got, err := SelectAll(context.Background(), db, users, userMapper, pred, WithOrderBy(userID, Asc))
	require.NoError(t, err)

	var want []User
	for i, n := range names {
		if id := int64(i + 1); id > 2 && strings.HasPrefix(n, "B") {
			want = append(want, User{ID: id, Name: n})
		}
	}
	assert.Equal(t, want, presentValues(t, got))
}

func TestSQLite_RawNamedPredicate(t *testing.T) {
	db := openSQLite(t)
	seedUsers(t, db, user(1, "Al", nil), user(2, "Bo", nil), user(3, "Cy", nil))

	where := Raw(`"users"."id" IN (:ids) AND "users"."name" <> :skip`, map[string]any{
		"ids":  []int64{1, 2, 3},
		"skip": "Bo",
	})
	got, err := SelectAll(context.Background(), db, users, userMapper, where, WithOrderBy(userID, Desc))
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: 3, Name: "Cy"}, {ID: 1, Name: "Al"}}, presentValues(t, got))
}

func shapeAssignments(s Shape) []Assignment {
	switch s := s.(type) {
	case Circle:
		return []Assignment{Set(shapeID, s.ID), Set(shapeKind, "circle"), Set(shapeRadius, s.Radius)}
	case Rect:
		return []Assignment{Set(shapeID, s.ID), Set(shapeKind, "rect"), Set(shapeWidth, s.Width), Set(shapeHeight, s.Height)}
	}
	panic("unreachable")
}

func TestSQLite_SumRoundTrip(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	want := []Shape{
		Circle{ID: 1, Radius: 1.5},
		Rect{ID: 2, Width: 2, Height: 3},
		Circle{ID: 3, Radius: 0},
	}
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		for _, s := range want {
			if _, err := Insert(ctx, tx, DialectSQLite, shapes, shapeAssignments(s)...); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got, err := SelectAll(ctx, db, shapes, shapeMapper, nil, WithOrderBy(shapeID, Asc))
	require.NoError(t, err)
	assert.Equal(t, want, presentValues(t, got))

	circles, err := SelectAll(ctx, db, shapes, shapeMapper, Eq(shapeKind, "circle"), WithOrderBy(shapeID, Asc))
	require.NoError(t, err)
	assert.Equal(t, []Shape{want[0], want[2]}, presentValues(t, circles))
}

func TestSQLite_LeftJoinAbsence(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	seedUsers(t, db, user(1, "Al", nil), user(2, "Bo", nil))
	_, err := Insert(ctx, db, DialectSQLite, pets, Set(petID, int64(10)), Set(petOwner, int64(1)), Set(petName, "Rex"))
	require.NoError(t, err)

	from := LeftJoin(users, pets, EqCol(userID, petOwner))
	got, err := SelectAll(ctx, db, from, Zip(userMapper, petMapper), nil, WithOrderBy(userID, Asc))
	require.NoError(t, err)

	assert.Equal(t, []Pair[User, Pet]{
		{First: User{ID: 1, Name: "Al"}, Second: Pet{ID: 10, Name: "Rex"}, SecondOK: true},
		{First: User{ID: 2, Name: "Bo"}},
	}, presentValues(t, got))
}

func TestSQLite_StructMapper(t *testing.T) {
	type account struct {
		ID        int64   `db:"id"`
		Name      string  `db:"name"`
		DeletedAt *string `db:"deleted_at"`
	}
	db := openSQLite(t)
	seedUsers(t, db, user(1, "Al", nil), user(2, "Bo", ptr("2020-01-01")))

	m := MustStructMapper[account](users)
	a, ok, err := SelectOne(context.Background(), db, users, m, Eq(userID, int64(2)))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, a.DeletedAt)
	assert.Equal(t, "2020-01-01", *a.DeletedAt)

	_, _, err = SelectOne(context.Background(), db, users, m, Eq(userID, int64(99)))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSQLite_InTxRollback(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := Insert(ctx, tx, DialectSQLite, users, user(1, "Al", nil)...); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := SelectAll(ctx, db, users, userMapper, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_DriverErrorUnchanged(t *testing.T) {
	db := openSQLite(t)
	ghosts := NewTable("ghosts")
	ghostID := Col[int64](ghosts, "id")

	_, err := SelectWithMapper(context.Background(), db, ghosts, NewMapper(func(r Row) int64 { return Get(r, ghostID) }, ghostID), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
	assert.False(t, strings.HasPrefix(err.Error(), "datamap:"))
}

func TestSQLite_SumByPresenceOverLeftJoins(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	seedUsers(t, db, user(1, "Al", nil), user(2, "Bo", nil), user(3, "Cy", nil))
	_, err := Insert(ctx, db, DialectSQLite, pets, Set(petID, int64(10)), Set(petOwner, int64(1)), Set(petName, "Rex"))
	require.NoError(t, err)
	_, err = Insert(ctx, db, DialectSQLite, shapes, shapeAssignments(Rect{ID: 2, Width: 3, Height: 4})...)
	require.NoError(t, err)

	// Each user owns a pet, a shape or nothing.
	from := LeftJoin(
		LeftJoin(users, pets, EqCol(userID, petOwner)),
		shapes, EqCol(userID, shapeID),
	)
	m := SumByPresence(
		When(petID, Map(petMapper, func(p Pet) any { return p })),
		When(shapeKind, Map(shapeMapper, func(s Shape) any { return s })),
	)

	cur, err := SelectWithMapper(ctx, db, from, m, nil, WithOrderBy(userID, Asc))
	require.NoError(t, err)
	var got []sql.Null[any]
	for v, ok := range cur.All() {
		got = append(got, sql.Null[any]{V: v, Valid: ok})
	}
	require.NoError(t, cur.Err())

	assert.Equal(t, []sql.Null[any]{
		{V: Pet{ID: 10, Name: "Rex"}, Valid: true},
		{V: Rect{ID: 2, Width: 3, Height: 4}, Valid: true},
		{},
	}, got)
}
