// Package mcpstdio exposes the tool registry over the stdio transport of
// github.com/mark3labs/mcp-go, for hosts that launch tool servers as
// subprocesses instead of talking HTTP.
package mcpstdio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/i2y/mcptrace/internal/usecase"
	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

// Bridge adapts the ToolRepository and InvokeToolUseCase onto an mcp-go server.
type Bridge struct {
	server   *mcpGoServer.MCPServer
	serveUC  *usecase.ServeToolsUseCase
	invokeUC *usecase.InvokeToolUseCase
	logger   *slog.Logger
}

// NewBridge creates an mcp-go server announcing name and version.
func NewBridge(name, version string, serveUC *usecase.ServeToolsUseCase, invokeUC *usecase.InvokeToolUseCase, logger *slog.Logger) *Bridge {
	return &Bridge{
		server:   mcpGoServer.NewMCPServer(name, version, mcpGoServer.WithToolCapabilities(false)),
		serveUC:  serveUC,
		invokeUC: invokeUC,
		logger:   logger.With("component", "mcpstdio_bridge"),
	}
}

// Server returns the underlying mcp-go server.
func (b *Bridge) Server() *mcpGoServer.MCPServer { return b.server }

// SyncTools registers every tool in the repository with the mcp-go server.
// Schema validation stays with InvokeToolUseCase.
func (b *Bridge) SyncTools(ctx context.Context) (int, error) {
	tools, err := b.serveUC.Execute(ctx)
	if err != nil {
		return 0, err
	}
	for _, tool := range tools {
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return 0, fmt.Errorf("failed to encode input schema of %s: %w", tool.Name, err)
		}
		b.server.AddTool(mcp.NewToolWithRawSchema(tool.Name, tool.Description, schema), b.handlerFor(tool.Name))
		b.logger.Debug("Registered tool with mcp-go server", slog.String("tool_name", tool.Name))
	}
	b.logger.Info("Tools registered for stdio transport", slog.Int("count", len(tools)))
	return len(tools), nil
}

func (b *Bridge) handlerFor(name string) mcpGoServer.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := b.invokeUC.Execute(ctx, name, request.GetArguments())
		if err != nil {
			// Same sanitized message the HTTP transport sends.
			resp := mcpToolError(name, err)
			return mcp.NewToolResultError(resp), nil
		}
		result, err := mcpjsonrpc.TextResult(payload)
		if err != nil {
			return mcp.NewToolResultError("tool execution failed"), nil
		}
		return mcp.NewToolResultText(result.Text()), nil
	}
}

func mcpToolError(name string, err error) string {
	switch usecase.Outcome(err) {
	case usecase.OutcomeNotFound:
		return fmt.Sprintf("tool not found: %s", name)
	case usecase.OutcomeInvalidParams:
		return err.Error()
	default:
		return "tool execution failed"
	}
}

// Listen serves the stdio transport until ctx is done or in reaches EOF.
func (b *Bridge) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return mcpGoServer.NewStdioServer(b.server).Listen(ctx, in, out)
}
