package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "attachdrop",
		Short: "Drag-and-drop attachment widget server",
		Long: `AttachDrop serves an embeddable attachment widget.

Dropped or picked files are validated, read into data URLs and
handed to the attachment list. Progress and per-file errors are
pushed to the page over a websocket or server-sent events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := serveCmd()
	rootCmd.AddCommand(
		serve,
		inspectCmd(),
		versionCmd(),
	)

	// Running without a subcommand starts the server
	rootCmd.RunE = serve.RunE
	rootCmd.Flags().AddFlagSet(serve.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
