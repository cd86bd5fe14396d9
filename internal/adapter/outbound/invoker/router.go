package invoker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i2y/mcptrace/internal/usecase"
)

// Router implements usecase.ToolInvoker and routes invocations based on the Type field.
type Router struct {
	invokers map[string]usecase.ToolInvoker
	logger   *slog.Logger
}

// NewRouter creates a router for the HTTP and gRPC invokers. Either may be nil
// when that upstream kind is not configured.
func NewRouter(httpInv, grpcInv usecase.ToolInvoker, logger *slog.Logger) *Router {
	r := &Router{
		invokers: make(map[string]usecase.ToolInvoker),
		logger:   logger.With("component", "invoker_router"),
	}
	if httpInv != nil {
		r.invokers[usecase.UpstreamHTTP] = httpInv
	}
	if grpcInv != nil {
		r.invokers[usecase.UpstreamGRPC] = grpcInv
	}
	return r
}

// Invoke routes the invocation to the invoker registered for details.Type.
// An empty type means HTTP.
func (r *Router) Invoke(ctx context.Context, details usecase.InvocationDetails, params map[string]interface{}) (interface{}, error) {
	kind := details.Type
	if kind == "" {
		kind = usecase.UpstreamHTTP
	}
	inv, ok := r.invokers[kind]
	if !ok {
		r.logger.Error("Unknown invocation type", slog.String("type", details.Type))
		return nil, fmt.Errorf("%w: %q", usecase.ErrUnsupportedUpstreamKind, details.Type)
	}
	r.logger.Debug("Routing invocation", slog.String("type", kind))
	return inv.Invoke(ctx, details, params)
}

// Handler returns a tool handler that forwards through the router. It fails
// immediately for upstream kinds the router cannot serve.
func (r *Router) Handler(details usecase.InvocationDetails) (usecase.ToolHandler, error) {
	kind := details.Type
	if kind == "" {
		kind = usecase.UpstreamHTTP
	}
	if _, ok := r.invokers[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", usecase.ErrUnsupportedUpstreamKind, details.Type)
	}
	return usecase.UpstreamHandler(r, details), nil
}
