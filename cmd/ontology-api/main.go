// Command ontology-api serves the ontology repository REST API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildTime=...".
var (
	version   = "dev"
	buildTime = "unknown"
)

const appName = "ontology-api"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	serve := serveCmd()

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Ontology repository REST API",
		Long: `ontology-api stores ontologies and their versioned submissions,
parses their classes and properties, and records mappings between
classes of different ontologies.

Configuration is read from ONTOAPI_* environment variables.
Running it without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve, migrateCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, version, buildTime)
		},
	})

	return cmd
}
