package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

// DefaultProtocolVersions are the versions a client accepts, most preferred first.
var DefaultProtocolVersions = []string{"2025-06-18", "2025-03-26"}

// Client issues handshake, discovery and tool call envelopes to one server.
// It is safe for concurrent use once initialized.
type Client struct {
	transport Transport
	session   *Session
	info      mcpjsonrpc.ClientInfo
	versions  []string
	nextID    atomic.Int64
	initMu    sync.Mutex
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClientInfo sets the identity sent in the initialize request.
func WithClientInfo(name, version string) Option {
	return func(c *Client) { c.info = mcpjsonrpc.ClientInfo{Name: name, Version: version} }
}

// WithProtocolVersions overrides the accepted protocol versions, most preferred first.
func WithProtocolVersions(versions ...string) Option {
	return func(c *Client) { c.versions = slices.Clone(versions) }
}

// New creates a client for endpoint using transport.
func New(endpoint string, transport Transport, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		session:   newSession(endpoint),
		info:      mcpjsonrpc.ClientInfo{Name: "mcptrace-client"},
		versions:  slices.Clone(DefaultProtocolVersions),
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.versions) == 0 {
		c.versions = slices.Clone(DefaultProtocolVersions)
	}
	c.logger = logger.With("component", "mcp_client", slog.String("session_id", c.session.ID()))
	return c
}

// NewHTTP creates a client that talks JSON over HTTP POST to endpoint.
func NewHTTP(endpoint string, httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	return New(endpoint, NewHTTPTransport(endpoint, httpClient, logger), logger, opts...)
}

// Session returns the client session.
func (c *Client) Session() *Session { return c.session }

// Initialized reports whether the handshake completed.
func (c *Client) Initialized() bool { return c.session.Initialized() }

// Endpoint returns the server endpoint.
func (c *Client) Endpoint() string { return c.session.Endpoint() }

// ServerName returns the server name announced during the handshake, or the
// endpoint before that.
func (c *Client) ServerName() string {
	if name := c.session.ServerInfo().Name; name != "" {
		return name
	}
	return c.session.Endpoint()
}

// Initialize performs the handshake. Any failure leaves the session
// uninitialized and is reported as *InitializationFailedError; a later call
// may try again.
func (c *Client) Initialize(ctx context.Context) (*domain.InitializeResult, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.session.Initialized() {
		return nil, ErrAlreadyInitialized
	}

	params := mcpjsonrpc.InitializeParams{
		ProtocolVersion: c.versions[0],
		ClientInfo:      c.info,
	}
	var result domain.InitializeResult
	if err := c.call(ctx, mcpjsonrpc.MethodInitialize, params, &result); err != nil {
		c.logger.Warn("Initialize failed", slog.Any("error", err))
		return nil, &InitializationFailedError{Reason: err.Error()}
	}
	if !slices.Contains(c.versions, result.ProtocolVersion) {
		c.logger.Warn("Server offered unsupported protocol version", slog.String("version", result.ProtocolVersion))
		return nil, &InitializationFailedError{
			Reason: fmt.Sprintf("server offered unsupported protocol version %q", result.ProtocolVersion),
		}
	}

	c.session.establish(&result)
	c.logger.Info("Session initialized",
		slog.String("server", result.ServerInfo.Name),
		slog.String("protocol_version", result.ProtocolVersion),
		slog.Int("tool_count", len(result.Capabilities.Tools)))
	return &result, nil
}

// DiscoverTools fetches the server's current tool list. It may differ from the
// snapshot captured during Initialize.
func (c *Client) DiscoverTools(ctx context.Context) ([]domain.Tool, error) {
	if !c.session.Initialized() {
		return nil, ErrNotInitialized
	}
	var result domain.ListToolsResult
	if err := c.call(ctx, mcpjsonrpc.MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("Discovered tools", slog.Int("count", len(result.Tools)))
	return result.Tools, nil
}

// CallTool invokes a tool. A server rejection is returned as *RPCError
// carrying the server's code and message.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpjsonrpc.CallToolResult, error) {
	if !c.session.Initialized() {
		return nil, ErrNotInitialized
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	var result mcpjsonrpc.CallToolResult
	params := mcpjsonrpc.CallToolParams{Name: name, Arguments: args}
	if err := c.call(ctx, mcpjsonrpc.MethodToolsCall, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call sends one request with a fresh correlation id and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	id := mcpjsonrpc.NumericID(c.nextID.Add(1))
	version := c.session.ProtocolVersion()
	if version == "" {
		version = c.versions[0]
	}

	req, err := mcpjsonrpc.NewRequest(version, id, method, params)
	if err != nil {
		return err
	}
	if trace := mcpjsonrpc.ContextClientTrace(ctx); trace != nil && trace.SendingRequest != nil {
		trace.SendingRequest(req)
	}

	resp, err := c.transport.RoundTrip(ctx, c.session.ID(), req)
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	if !mcpjsonrpc.SameID(resp.ID, id) {
		return &TransportError{Method: method, Err: fmt.Errorf("response id %s does not match request id %s", resp.ID, id)}
	}
	if err := resp.Validate(); err != nil {
		return &TransportError{Method: method, Err: err}
	}
	if resp.Error != nil {
		c.logger.Debug("Server returned error envelope",
			slog.String("method", method), slog.Int("code", resp.Error.Code), slog.String("message", resp.Error.Message))
		return resp.Error
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &TransportError{Method: method, Err: fmt.Errorf("failed to decode %s result: %w", method, err)}
	}
	return nil
}
