package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the mcptrace command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "mcptrace",
		Short: "Tool-calling protocol server, client and execution tracer",
		Long: "mcptrace serves tools over a JSON-RPC tool-calling protocol, calls them from a " +
			"traced client and keeps the causal trace of every run.",
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("mcptrace version %s\n", version))

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewCallCmd())
	root.AddCommand(NewRunsCmd())
	root.AddCommand(NewTraceCmd())
	return root
}
