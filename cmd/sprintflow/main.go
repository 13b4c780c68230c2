package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sprintflow",
	Short: "SprintFlow project tracking server",
	Long: `SprintFlow serves boards, issues, role based access control and
automation rules over HTTP and websockets.

Configuration is read from SPRINTFLOW_* environment variables.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
