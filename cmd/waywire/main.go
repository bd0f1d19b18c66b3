package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "waywire",
		Short: "Wire-protocol tooling for display-server connections",
		Long: `Waywire speaks the binary object protocol used between display
servers and their clients: length-prefixed messages over a unix
socket, with file descriptors passed out of band.

The CLI connects as a client to the display socket named by
$WAYLAND_DISPLAY (or an explicit --socket path) and offers
introspection and monitoring over that connection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		inspectCmd(),
		monitorCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
