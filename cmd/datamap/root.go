package main

import (
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/go-mizu/datamap"
	"github.com/go-mizu/datamap/internal/config"
	"github.com/go-mizu/datamap/internal/ui"
)

type rootOptions struct {
	configFile string
	driver     string
	dsn        string
	debug      bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "datamap",
		Short: "Select exactly the columns a mapper needs",
		Long: `datamap queries a database through column-set mappers.

Connection settings come from .datamap.yaml, .env files and DATAMAP_*
environment variables, and can be overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&o.configFile, "config", "", "config file (default .datamap.yaml in ., $HOME or ~/.config/datamap)")
	f.StringVar(&o.driver, "driver", "", "database/sql driver: sqlite3, postgres or mysql")
	f.StringVar(&o.dsn, "dsn", "", "data source name")
	f.BoolVar(&o.debug, "debug", false, "log rendered SQL to stderr")

	cmd.AddCommand(newQueryCmd(o), newDemoCmd(), newVersionCmd())
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{ConfigFile: o.configFile})
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("driver") {
		cfg.Driver = o.driver
	}
	if f.Changed("dsn") {
		cfg.DSN = o.dsn
	}
	if f.Changed("debug") {
		cfg.Debug = o.debug
	}
	if cfg.Debug {
		datamap.SetLogger(slog.New(slog.NewTextHandler(ui.Err, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) open() (*sql.DB, error) {
	return sql.Open(o.cfg.Driver, o.cfg.DSN)
}
