package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/i2y/mcptrace/configs"
	"github.com/i2y/mcptrace/internal/adapter/outbound/mcpclient"
	"github.com/i2y/mcptrace/internal/adapter/outbound/otelexport"
	"github.com/i2y/mcptrace/internal/adapter/outbound/tracestore"
	"github.com/i2y/mcptrace/internal/exectrace"
	"github.com/i2y/mcptrace/internal/usecase"
)

// NewCallCmd creates the "call" subcommand.
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call one tool through a traced run and print the trace",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().String("endpoint", "", "Server endpoint (overrides MCPTRACE_ENDPOINT)")
	cmd.Flags().String("task", "", "Task description recorded on the run-start step")
	cmd.Flags().Bool("no-store", false, "Do not persist the trace")
	cmd.Flags().Bool("json", false, "Print the trace as JSON")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	toolName := args[0]
	rawArgs, _ := cmd.Flags().GetString("args")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	task, _ := cmd.Flags().GetString("task")
	noStore, _ := cmd.Flags().GetBool("no-store")
	asJSON, _ := cmd.Flags().GetBool("json")

	var toolArgs map[string]interface{}
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	cfg, err := configs.Load()
	if err != nil {
		return err
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if task == "" {
		task = "call " + toolName
	}

	logger, closeLog := newLogger(verbosity(cmd, cfg), false, "", cmd.ErrOrStderr())
	defer closeLog()

	ctx := cmd.Context()
	sinks, cleanup, err := openSinks(ctx, cfg, noStore, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	client := mcpclient.NewHTTP(cfg.Endpoint, &http.Client{Timeout: cfg.HTTPClientTimeout}, logger,
		mcpclient.WithClientInfo("mcptrace-cli", cfg.ServerVersion),
		mcpclient.WithProtocolVersions(cfg.ProtocolVersions...))
	run := usecase.NewTracedRun(client, exectrace.NewTracker(), logger, sinks...)

	runID := run.Start(task)
	outcome := callOnce(ctx, client, run, toolName, toolArgs)
	steps, exportErr := run.Finish(ctx, outcome)

	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{"runId": runID, "steps": steps}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n\n", runID)
		renderSteps(cmd.OutOrStdout(), steps)
		fmt.Fprintln(cmd.OutOrStdout())
		renderDiagram(cmd.OutOrStdout(), exectrace.BuildDiagram(steps))
	}

	if exportErr != nil {
		logger.Warn("Trace export incomplete", slog.Any("error", exportErr))
	}
	return outcome
}

// callOnce performs the handshake (narrated into the trace) and the tool call.
func callOnce(ctx context.Context, client *mcpclient.Client, run *usecase.TracedRun, name string, args map[string]interface{}) error {
	res, err := client.Initialize(ctx)
	if err != nil {
		run.Narrate("initialize failed: " + err.Error())
		return err
	}
	run.Narrate(fmt.Sprintf("connected to %s (protocol %s, %d tools)",
		res.ServerInfo.Name, res.ProtocolVersion, len(res.Capabilities.Tools)))

	_, err = run.CallTool(ctx, name, args)
	return err
}

// openSinks opens the trace store and, when OTLP export is configured, the span sink.
func openSinks(ctx context.Context, cfg *configs.Config, noStore bool, logger *slog.Logger) ([]usecase.TraceSink, func(), error) {
	var sinks []usecase.TraceSink
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if !noStore {
		store, err := tracestore.Open(cfg.TraceDSN)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closers = append(closers, func() { _ = store.Close() })
	}

	shutdownOtel, enabled, err := initOtelProvider(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if enabled {
		sinks = append(sinks, otelexport.NewSpanSink(otel.Tracer("mcptrace/run")))
		closers = append(closers, func() {
			if err := shutdownOtel(context.Background()); err != nil {
				logger.Error("Failed to shutdown OpenTelemetry providers.", slog.Any("error", err))
			}
		})
	}
	return sinks, cleanup, nil
}
