// Package cli provides the tdr-agent command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set via ldflags during build
var Version = "dev"

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	settingsPath string
	runtimePath  string
	catalog      string
	logLevel     string
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can run it in isolation
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tdr-agent",
		Short: "Translate natural-language threat questions into API requests",
		Long: `tdr-agent turns questions about users, devices, rare processes and the
organization into requests against a threat detection and response API.

Examples:
  tdr-agent serve                                  # run the HTTP API
  tdr-agent resolve "top 5 risky devices"          # resolve one query
  tdr-agent batch --input queries.yaml             # resolve a query file and write a report
  tdr-agent mcp                                    # serve MCP tools over stdio`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.settingsPath, "settings", "s", "", "settings file (default: config/config.yaml when present)")
	cmd.PersistentFlags().StringVarP(&opts.runtimePath, "config", "c", "", "runtime configuration file holding host, token and model credentials")
	cmd.PersistentFlags().StringVar(&opts.catalog, "catalog", "", "path or URL of the OpenAPI document")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	for _, sub := range []*cobra.Command{
		newServeCmd(opts),
		newResolveCmd(opts),
		newBatchCmd(opts),
		newMCPCmd(opts),
		newEndpointsCmd(opts),
		newVersionCmd(),
	} {
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}
	cmd.SetFlagErrorFunc(flagError)

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("tdr-agent %s\n", Version)
		},
	}
}
