package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

const maxRequestBytes = 4 << 20

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	initializeUseCase *usecase.InitializeUseCase
	serveToolsUseCase *usecase.ServeToolsUseCase
	invokeToolUseCase *usecase.InvokeToolUseCase
	requireSession    bool
	logger            *slog.Logger
}

// NewHandlers creates a new Handlers struct. When requireSession is set,
// tools/list and tools/call are rejected for sessions that never completed
// an initialize handshake.
func NewHandlers(
	initUC *usecase.InitializeUseCase,
	serveUC *usecase.ServeToolsUseCase,
	invokeUC *usecase.InvokeToolUseCase,
	requireSession bool,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		initializeUseCase: initUC,
		serveToolsUseCase: serveUC,
		invokeToolUseCase: invokeUC,
		requireSession:    requireSession,
		logger:            logger.With("component", "mcphttp_handler"),
	}
}

// RegisterRoutes sets up the protocol endpoint and the admin endpoints.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp", h.handleMCP)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /admin/sessions", h.handleListSessions)
}

// handleMCP implements POST /mcp: one request envelope in, one response envelope out.
func (h *Handlers) handleMCP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		h.logger.Warn("Failed to read request body", slog.Any("error", err))
		h.writeEnvelope(w, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeParseError, "failed to read request body", nil))
		return
	}

	var req mcpjsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("Failed to decode request envelope", slog.Any("error", err))
		h.writeEnvelope(w, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeParseError, "invalid JSON", nil))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.Warn("Rejected invalid request envelope", slog.Any("error", err))
		h.writeEnvelope(w, mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInvalidRequest, err.Error(), nil))
		return
	}

	sessionID := r.Header.Get(mcpjsonrpc.HeaderSessionID)
	if v := r.Header.Get(mcpjsonrpc.HeaderProtocolVersion); v != "" && v != req.ProtocolVersion {
		h.logger.Debug("Protocol version header differs from envelope",
			slog.String("header", v), slog.String("envelope", req.ProtocolVersion))
	}

	h.writeEnvelope(w, h.Dispatch(r.Context(), sessionID, &req))
}

// Dispatch resolves a single request envelope into exactly one response envelope.
func (h *Handlers) Dispatch(ctx context.Context, sessionID string, req *mcpjsonrpc.Request) *mcpjsonrpc.Response {
	log := h.logger.With(slog.String("method", req.Method), slog.String("session_id", sessionID))

	switch req.Method {
	case mcpjsonrpc.MethodInitialize:
		return h.handleInitialize(ctx, sessionID, req)
	case mcpjsonrpc.MethodToolsList, mcpjsonrpc.MethodToolsCall:
	default:
		log.Warn("Unknown method")
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	if h.requireSession {
		if err := h.initializeUseCase.RequireSession(ctx, sessionID); err != nil {
			log.Warn("Request on uninitialized session", slog.Any("error", err))
			return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeServerErrorSessionNotInitialized,
				"session not initialized: send initialize first", nil)
		}
	}

	if req.Method == mcpjsonrpc.MethodToolsList {
		return h.handleListTools(ctx, req)
	}
	return h.handleCallTool(ctx, req)
}

func (h *Handlers) handleInitialize(ctx context.Context, sessionID string, req *mcpjsonrpc.Request) *mcpjsonrpc.Response {
	var params mcpjsonrpc.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInvalidParams, "invalid initialize params", nil)
		}
	}
	if params.ProtocolVersion == "" {
		params.ProtocolVersion = req.ProtocolVersion
	}

	result, err := h.initializeUseCase.Execute(ctx, usecase.InitializeRequest{
		SessionID:       sessionID,
		ProtocolVersion: params.ProtocolVersion,
		ClientName:      params.ClientInfo.Name,
		ClientVersion:   params.ClientInfo.Version,
	})
	switch {
	case errors.Is(err, usecase.ErrMissingSessionID):
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInvalidRequest,
			fmt.Sprintf("missing %s header", mcpjsonrpc.HeaderSessionID), nil)
	case err != nil:
		h.logger.Error("Initialize failed", slog.Any("error", err))
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInternalError, "initialize failed", nil)
	}
	return h.result(req.ID, result)
}

func (h *Handlers) handleListTools(ctx context.Context, req *mcpjsonrpc.Request) *mcpjsonrpc.Response {
	tools, err := h.serveToolsUseCase.Execute(ctx)
	if err != nil {
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInternalError, "failed to list tools", nil)
	}
	return h.result(req.ID, domain.ListToolsResult{Tools: tools})
}

func (h *Handlers) handleCallTool(ctx context.Context, req *mcpjsonrpc.Request) *mcpjsonrpc.Response {
	var params mcpjsonrpc.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInvalidParams, "tools/call requires a tool name", nil)
	}

	payload, err := h.invokeToolUseCase.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		return ToolErrorEnvelope(req.ID, params.Name, err)
	}

	result, err := mcpjsonrpc.TextResult(payload)
	if err != nil {
		h.logger.Error("Failed to serialize tool result", slog.String("tool_name", params.Name), slog.Any("error", err))
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInternalError, "tool execution failed", nil)
	}
	return h.result(req.ID, result)
}

// ToolErrorEnvelope maps an InvokeToolUseCase error onto its reserved code.
// Handler failures are reduced to a generic message; details stay in the logs.
func ToolErrorEnvelope(id json.RawMessage, toolName string, err error) *mcpjsonrpc.Response {
	var schemaErr *domain.SchemaValidationError
	switch usecase.Outcome(err) {
	case usecase.OutcomeNotFound:
		return mcpjsonrpc.NewError(id, mcpjsonrpc.CodeServerErrorToolNotFound,
			fmt.Sprintf("tool not found: %s", toolName), map[string]string{"name": toolName})
	case usecase.OutcomeInvalidParams:
		errors.As(err, &schemaErr)
		return mcpjsonrpc.NewError(id, mcpjsonrpc.CodeInvalidParams, schemaErr.Error(), schemaErr)
	default:
		return mcpjsonrpc.NewError(id, mcpjsonrpc.CodeInternalError, "tool execution failed", map[string]string{"name": toolName})
	}
}

func (h *Handlers) result(id json.RawMessage, v interface{}) *mcpjsonrpc.Response {
	resp, err := mcpjsonrpc.NewResult(id, v)
	if err != nil {
		h.logger.Error("Failed to encode result", slog.Any("error", err))
		return mcpjsonrpc.NewError(id, mcpjsonrpc.CodeInternalError, "failed to encode result", nil)
	}
	return resp
}

func (h *Handlers) writeEnvelope(w http.ResponseWriter, resp *mcpjsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to write response envelope", slog.Any("error", err))
	}
}

// handleHealth implements GET /health
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// handleListSessions implements GET /admin/sessions
func (h *Handlers) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.initializeUseCase.Sessions(r.Context())
	if err != nil {
		h.logger.Error("Failed to list sessions", slog.Any("error", err))
		http.Error(w, fmt.Sprintf("Failed to list sessions: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"sessions": sessions}); err != nil {
		h.logger.Error("Failed to write sessions", slog.Any("error", err))
	}
}
