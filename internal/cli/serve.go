package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/i2y/mcptrace/configs"
	"github.com/i2y/mcptrace/internal/adapter/inbound/mcpstdio"
	"github.com/i2y/mcptrace/internal/adapter/outbound/otelexport"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool registry over HTTP or stdio",
		RunE:  runServe,
	}
	cmd.Flags().String("transport", "http", "Transport mode: http or stdio")
	cmd.Flags().String("addr", "", "Listen address (overrides MCPTRACE_LISTEN_ADDR)")
	cmd.Flags().String("log-file", filepath.Join(os.TempDir(), "mcptrace.log"), "Log file used in stdio mode")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	addr, _ := cmd.Flags().GetString("addr")
	logFile, _ := cmd.Flags().GetString("log-file")
	if transport != "http" && transport != "stdio" {
		return fmt.Errorf("invalid transport %q: want http or stdio", transport)
	}

	cfg, err := configs.Load()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}

	logger, closeLog := newLogger(verbosity(cmd, cfg), transport == "stdio", logFile, cmd.ErrOrStderr())
	defer closeLog()
	slog.SetDefault(logger)

	ctx := cmd.Context()
	shutdownOtel, _, err := initOtelProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry providers.", slog.Any("error", err))
		}
	}()

	observer, err := otelexport.NewToolObserver(otel.GetMeterProvider().Meter("mcptrace/tool"))
	if err != nil {
		return fmt.Errorf("initializing tool metrics: %w", err)
	}

	app, err := NewApp(ctx, cfg, observer, logger)
	if err != nil {
		return err
	}

	if transport == "stdio" {
		bridge := mcpstdio.NewBridge(cfg.ServerName, cfg.ServerVersion, app.ServeUC, app.InvokeUC, logger)
		if _, err := bridge.SyncTools(ctx); err != nil {
			return fmt.Errorf("registering tools for stdio: %w", err)
		}
		logger.Info("Starting in STDIO mode")
		return bridge.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return serveHTTP(ctx, cfg, app, logger)
}

func serveHTTP(ctx context.Context, cfg *configs.Config, app *App, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting.", slog.String("address", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server shut down gracefully.")
	return nil
}

// verbosity applies the --verbose flag over the configured level.
func verbosity(cmd *cobra.Command, cfg *configs.Config) slog.Level {
	if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
		return slog.LevelDebug
	}
	return cfg.ParsedLogLevel()
}
