package main

import (
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/go-mizu/datamap/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
