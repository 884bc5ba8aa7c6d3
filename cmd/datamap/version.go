package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/go-mizu/datamap/internal/ui"
)

var (
	// Version is set at build time with -ldflags "-X main.Version=...".
	Version   = "dev"
	GitCommit = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(ui.Out, "datamap version %s (%s, %s %s/%s)\n",
				Version, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
