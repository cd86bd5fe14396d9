package usecase

import "context"

// Upstream kinds supported by the invoker router.
const (
	UpstreamHTTP = "http"
	UpstreamGRPC = "grpc"
)

// InvocationDetails holds the information needed to forward a tool call to an
// upstream service. Tools declared in configuration carry one of these.
type InvocationDetails struct {
	// Type selects the invoker ("http" or "grpc").
	Type string `json:"type"`

	// Host is the base URL of an HTTP upstream (e.g., "http://localhost:8080").
	Host string `json:"host,omitempty"`

	// HTTPMethod is the HTTP verb (e.g., "POST", "GET").
	HTTPMethod string `json:"http_method,omitempty"`

	// HTTPPath is the request path, possibly with {placeholders} (e.g., "/reminders/{id}").
	HTTPPath string `json:"http_path,omitempty"`

	// QueryParams lists the arguments sent as URL query parameters.
	QueryParams []string `json:"query_params,omitempty"`

	// HeaderParams are static headers (HTTP) or metadata (gRPC) sent with every call.
	HeaderParams map[string]string `json:"header_params,omitempty"`

	// BodyParam names the single argument used as the request body.
	// When empty, all remaining arguments form the body.
	BodyParam string `json:"body_param,omitempty"`

	// ContentType of the request body. Defaults to application/json.
	ContentType string `json:"content_type,omitempty"`

	// GRPCTarget is the host:port of a gRPC upstream with server reflection enabled.
	GRPCTarget string `json:"grpc_target,omitempty"`

	// GRPCService is the fully-qualified service name (e.g., "reminders.v1.ReminderService").
	GRPCService string `json:"grpc_service,omitempty"`

	// GRPCMethod is the method name within GRPCService.
	GRPCMethod string `json:"grpc_method,omitempty"`
}

// ToolInvoker defines the contract for executing an upstream call on behalf of a tool.
type ToolInvoker interface {
	Invoke(ctx context.Context, details InvocationDetails, params map[string]interface{}) (interface{}, error)
}

// UpstreamHandler adapts an invoker and fixed invocation details into a ToolHandler.
func UpstreamHandler(invoker ToolInvoker, details InvocationDetails) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return invoker.Invoke(ctx, details, args)
	}
}
