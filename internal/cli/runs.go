package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/i2y/mcptrace/configs"
	"github.com/i2y/mcptrace/internal/adapter/outbound/tracestore"
	"github.com/i2y/mcptrace/internal/exectrace"
)

// NewRunsCmd creates the "runs" subcommand.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, most recent first",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().Bool("json", false, "Print runs as JSON")
	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tSTEPS\tTASK")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Steps, r.Task)
	}
	return tw.Flush()
}

// NewTraceCmd creates the "trace" subcommand.
func NewTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Print the steps and causal diagram of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}
	cmd.Flags().Bool("json", false, "Print steps and diagram as JSON")
	return cmd
}

func runTrace(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	steps, err := store.LoadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	diagram := exectrace.BuildDiagram(steps)
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"runId": args[0], "steps": steps, "diagram": diagram})
	}
	renderSteps(cmd.OutOrStdout(), steps)
	fmt.Fprintln(cmd.OutOrStdout())
	renderDiagram(cmd.OutOrStdout(), diagram)
	return nil
}

func openStore() (*tracestore.Store, error) {
	cfg, err := configs.Load()
	if err != nil {
		return nil, err
	}
	return tracestore.Open(cfg.TraceDSN)
}
