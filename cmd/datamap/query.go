package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-mizu/datamap"
	"github.com/go-mizu/datamap/internal/filter"
	"github.com/go-mizu/datamap/internal/ui"
)

type queryOptions struct {
	table   string
	columns []string
	where   string
	order   []string
	limit   int
	offset  int
	explain bool
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	o := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Select columns of a table",
		Example: `  datamap query --table users --columns id,name --where "deleted_at IS NULL"
  datamap query --table users --columns id --order "name desc" --limit 10 --explain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), root, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.table, "table", "t", "", "table to select from")
	f.StringSliceVarP(&o.columns, "columns", "c", nil, "columns to select")
	f.StringVarP(&o.where, "where", "w", "", "filter, e.g. \"id > 1 AND name LIKE 'A%'\"")
	f.StringSliceVar(&o.order, "order", nil, `order terms, "column" or "column desc"`)
	f.IntVar(&o.limit, "limit", -1, "maximum number of rows")
	f.IntVar(&o.offset, "offset", 0, "rows to skip")
	f.BoolVar(&o.explain, "explain", false, "print the SQL instead of running it")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("columns")
	return cmd
}

// dynamicTable declares the requested columns as Column[any] and declares
// columns that only the filter or ordering mention on first use.
type dynamicTable struct {
	*datamap.Table
	selected []*datamap.Column[any]
}

func newDynamicTable(name string, columns []string) (*dynamicTable, error) {
	t := &dynamicTable{Table: datamap.NewTable(name)}
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := t.Column(c); dup {
			return nil, fmt.Errorf("column %q listed twice", c)
		}
		t.selected = append(t.selected, datamap.Col[any](t.Table, c))
	}
	if len(t.selected) == 0 {
		return nil, datamap.ErrNoColumns
	}
	return t, nil
}

func (t *dynamicTable) resolve(name string) (*datamap.Column[any], error) {
	bare := name
	if _, c, ok := strings.Cut(name, "."); ok {
		bare = c
	}
	if _, ok := t.Column(bare); !ok {
		datamap.Col[any](t.Table, bare)
	}
	return filter.TableResolver(t.Table)(name)
}

// mapper renders every selected column as a table cell.
func (t *dynamicTable) mapper() datamap.Mapper[[]string] {
	cols := make([]datamap.Expr, len(t.selected))
	for i, c := range t.selected {
		cols[i] = c
	}
	return datamap.NewMapper(func(r datamap.Row) []string {
		cells := make([]string, len(t.selected))
		for i, c := range t.selected {
			v, ok := datamap.Lookup(r, c)
			cells[i] = ui.Cell(v, ok)
		}
		return cells
	}, cols...)
}

func (t *dynamicTable) headers() []string {
	out := make([]string, len(t.selected))
	for i, c := range t.selected {
		out[i] = c.Name()
	}
	return out
}

func (t *dynamicTable) orderBy(terms []string) ([]datamap.SelectOption, error) {
	var opts []datamap.SelectOption
	for _, term := range terms {
		fields := strings.Fields(term)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, fmt.Errorf("bad order term %q", term)
		}
		col, err := t.resolve(fields[0])
		if err != nil {
			return nil, err
		}
		dir := datamap.Asc
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				dir = datamap.Desc
			default:
				return nil, fmt.Errorf("bad order direction %q", fields[1])
			}
		}
		opts = append(opts, datamap.WithOrderBy(col, dir))
	}
	return opts, nil
}

func runQuery(ctx context.Context, root *rootOptions, o *queryOptions) error {
	t, err := newDynamicTable(o.table, o.columns)
	if err != nil {
		return err
	}
	where, err := filter.Parse(o.where, t.resolve)
	if err != nil {
		return err
	}
	opts, err := t.orderBy(o.order)
	if err != nil {
		return err
	}
	opts = append(opts, datamap.WithDialect(datamap.DialectFor(root.cfg.Driver)), datamap.WithLimit(o.limit), datamap.WithOffset(o.offset))

	if o.explain {
		q, args, err := datamap.SelectSQL(t.Table, t.mapper(), where, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, q)
		for i, a := range args {
			fmt.Fprintf(ui.Out, "  %d: %#v\n", i+1, a)
		}
		return nil
	}

	db, err := root.open()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := datamap.SelectAll(ctx, db, t.Table, t.mapper(), where, opts...)
	if err != nil {
		return err
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, r.V)
	}
	if err := ui.PrintTable(t.headers(), cells); err != nil {
		return err
	}
	ui.PrintSuccess("%d rows", len(rows))
	return nil
}
