package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mizu/datamap"
	"github.com/go-mizu/datamap/internal/ui"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	prevOut, prevErr, prevNoColor := ui.Out, ui.Err, color.NoColor
	ui.Out, ui.Err, color.NoColor = &out, &out, true
	t.Cleanup(func() {
		ui.Out, ui.Err, color.NoColor = prevOut, prevErr, prevNoColor
		datamap.SetLogger(nil)
	})
	for _, k := range []string{"DATAMAP_DRIVER", "DATAMAP_DSN", "DATAMAP_DEBUG", "DATABASE_URL"} {
		t.Setenv(k, "")
	}

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func usersDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, deleted_at TEXT);
INSERT INTO users VALUES (1, 'Al', NULL), (2, 'Bo', '2020-01-01'), (3, 'Bea', NULL);
`)
	require.NoError(t, err)
	return path
}

func TestQuery(t *testing.T) {
	path := usersDB(t)

	out, err := run(t, "query", "--driver", "sqlite3", "--dsn", path,
		"--table", "users", "--columns", "id,name", "--where", "deleted_at IS NULL", "--order", "id desc")
	require.NoError(t, err)
	assert.Contains(t, out, "Al")
	assert.Contains(t, out, "Bea")
	assert.NotRegexp(t, `\bBo\b`, out)
	assert.Contains(t, out, "2 rows")
}

func TestQuery_Explain(t *testing.T) {
	out, err := run(t, "query", "--driver", "postgres", "--dsn", "unused",
		"--table", "users", "--columns", "id", "--where", "name LIKE 'B%'", "--limit", "5", "--explain")
	require.NoError(t, err)
	assert.Contains(t, out, `SELECT "users"."id" FROM "users" WHERE "users"."name" LIKE $1 LIMIT 5`)
	assert.Contains(t, out, `1: "B%"`)
}

func TestQuery_Debug(t *testing.T) {
	path := usersDB(t)

	out, err := run(t, "--debug", "query", "--driver", "sqlite3", "--dsn", path, "--table", "users", "--columns", "name")
	require.NoError(t, err)
	assert.Contains(t, out, `msg="datamap: select"`)
}

func TestQuery_Errors(t *testing.T) {
	_, err := run(t, "query", "--table", "users", "--columns", "id,id", "--explain")
	assert.ErrorContains(t, err, "listed twice")

	_, err = run(t, "query", "--table", "users", "--columns", "id", "--where", "id =", "--explain")
	assert.Error(t, err)

	_, err = run(t, "query", "--table", "users", "--columns", "id", "--order", "id sideways", "--explain")
	assert.ErrorContains(t, err, "bad order direction")

	_, err = run(t, "query", "--columns", "id")
	assert.Error(t, err)
}

func TestDemo(t *testing.T) {
	out, err := run(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "circle #1 r=1.5")
	assert.Contains(t, out, "rect #2 2x3")
	assert.Contains(t, out, "Rex")
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "3 shapes, 2 active owners")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "datamap version dev")
}
