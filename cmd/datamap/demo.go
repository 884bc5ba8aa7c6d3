package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-mizu/datamap"
	"github.com/go-mizu/datamap/internal/ui"
)

// Demo schema: a sum type stored with a discriminator column, and an
// optional relation read through a LEFT JOIN.
var (
	shapes      = datamap.NewTable("shapes")
	shapeID     = datamap.Col[int64](shapes, "id")
	shapeKind   = datamap.Col[string](shapes, "kind")
	shapeRadius = datamap.Col[float64](shapes, "radius")
	shapeWidth  = datamap.Col[float64](shapes, "width")
	shapeHeight = datamap.Col[float64](shapes, "height")

	owners    = datamap.NewTable("owners")
	ownerID   = datamap.Col[int64](owners, "id")
	ownerName = datamap.Col[string](owners, "name")
	ownerGone = datamap.Col[string](owners, "deleted_at")

	pets     = datamap.NewTable("pets")
	petID    = datamap.Col[int64](pets, "id")
	petOwner = datamap.Col[int64](pets, "owner_id")
	petName  = datamap.Col[string](pets, "name")
)

const demoSchema = `
CREATE TABLE shapes (id INTEGER PRIMARY KEY, kind TEXT NOT NULL, radius REAL, width REAL, height REAL);
CREATE TABLE owners (id INTEGER PRIMARY KEY, name TEXT NOT NULL, deleted_at TEXT);
CREATE TABLE pets (id INTEGER PRIMARY KEY, owner_id INTEGER NOT NULL, name TEXT NOT NULL);
`

type shape interface{ describe() string }

type circle struct {
	id     int64
	radius float64
}

type rect struct {
	id            int64
	width, height float64
}

func (c circle) describe() string { return fmt.Sprintf("circle #%d r=%g", c.id, c.radius) }
func (r rect) describe() string   { return fmt.Sprintf("rect #%d %gx%g", r.id, r.width, r.height) }

var shapeMapper = datamap.Sum(shapeKind,
	datamap.Case("circle", datamap.NewMapper(func(r datamap.Row) shape {
		return circle{id: datamap.Get(r, shapeID), radius: datamap.Get(r, shapeRadius)}
	}, shapeID, shapeRadius)),
	datamap.Case("rect", datamap.NewMapper(func(r datamap.Row) shape {
		return rect{id: datamap.Get(r, shapeID), width: datamap.Get(r, shapeWidth), height: datamap.Get(r, shapeHeight)}
	}, shapeID, shapeWidth, shapeHeight)),
)

type owner struct {
	ID   int64  `db:"owners.id"`
	Name string `db:"owners.name"`
}

type pet struct {
	ID   int64  `db:"pets.id"`
	Name string `db:"pets.name"`
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Seed an in-memory SQLite database and map sum types from it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context())
		},
	}
}

func runDemo(ctx context.Context) error {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := seedDemo(ctx, db); err != nil {
		return err
	}
	ui.PrintHeader("datamap demo", "one SELECT per mapper, only the columns it needs")

	q, _, err := datamap.SelectSQL(shapes, shapeMapper, nil)
	if err != nil {
		return err
	}
	ui.PrintInfo("%s", q)
	cur, err := datamap.SelectWithMapper(ctx, db, shapes, shapeMapper, nil, datamap.WithOrderBy(shapeID, datamap.Asc))
	if err != nil {
		return err
	}
	var rows [][]string
	for s, ok := range cur.All() {
		if ok {
			rows = append(rows, []string{s.describe()})
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if err := ui.PrintTable([]string{"shape"}, rows); err != nil {
		return err
	}
	nShapes := len(rows)

	from := datamap.LeftJoin(owners, pets, datamap.EqCol(ownerID, petOwner))
	m := datamap.Zip(datamap.MustStructMapper[owner](from), datamap.Nullable(datamap.MustStructMapper[pet](from)))
	q, _, err = datamap.SelectSQL(from, m, datamap.IsNull(ownerGone))
	if err != nil {
		return err
	}
	ui.PrintInfo("%s", q)
	pairs, err := datamap.SelectAll(ctx, db, from, m, datamap.IsNull(ownerGone), datamap.WithOrderBy(ownerID, datamap.Asc))
	if err != nil {
		return err
	}
	rows = rows[:0]
	for _, p := range pairs {
		label := "(none)"
		if p.V.SecondOK {
			label = p.V.Second.Name
		}
		rows = append(rows, []string{p.V.First.Name, label})
	}
	if err := ui.PrintTable([]string{"owner", "pet"}, rows); err != nil {
		return err
	}
	ui.PrintSuccess("%d shapes, %d active owners", nShapes, len(pairs))
	return nil
}

func seedDemo(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, demoSchema); err != nil {
		return err
	}
	return datamap.InTx(ctx, db, func(tx *sql.Tx) error {
		inserts := []struct {
			t      *datamap.Table
			values []datamap.Assignment
		}{
			{shapes, []datamap.Assignment{datamap.Set(shapeID, int64(1)), datamap.Set(shapeKind, "circle"), datamap.Set(shapeRadius, 1.5)}},
			{shapes, []datamap.Assignment{datamap.Set(shapeID, int64(2)), datamap.Set(shapeKind, "rect"), datamap.Set(shapeWidth, 2.0), datamap.Set(shapeHeight, 3.0)}},
			{shapes, []datamap.Assignment{datamap.Set(shapeID, int64(3)), datamap.Set(shapeKind, "circle"), datamap.Set(shapeRadius, 0.5)}},
			{owners, []datamap.Assignment{datamap.Set(ownerID, int64(1)), datamap.Set(ownerName, "Al"), datamap.SetNull(ownerGone)}},
			{owners, []datamap.Assignment{datamap.Set(ownerID, int64(2)), datamap.Set(ownerName, "Bo"), datamap.Set(ownerGone, "2020-01-01")}},
			{owners, []datamap.Assignment{datamap.Set(ownerID, int64(3)), datamap.Set(ownerName, "Cy")}},
			{pets, []datamap.Assignment{datamap.Set(petID, int64(10)), datamap.Set(petOwner, int64(1)), datamap.Set(petName, "Rex")}},
		}
		for _, in := range inserts {
			if _, err := datamap.Insert(ctx, tx, datamap.DialectSQLite, in.t, in.values...); err != nil {
				return err
			}
		}
		return nil
	})
}
