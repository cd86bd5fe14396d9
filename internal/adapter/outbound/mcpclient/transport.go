package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

// Transport performs one request/response round trip.
type Transport interface {
	RoundTrip(ctx context.Context, sessionID string, req *mcpjsonrpc.Request) (*mcpjsonrpc.Response, error)
}

// HTTPTransport posts envelopes as JSON to a single endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPTransport creates a transport for endpoint (e.g. "http://localhost:8080/mcp").
func NewHTTPTransport(endpoint string, client *http.Client, logger *slog.Logger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		endpoint: endpoint,
		client:   client,
		logger:   logger.With("component", "http_transport"),
	}
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, sessionID string, req *mcpjsonrpc.Request) (*mcpjsonrpc.Response, error) {
	log := t.logger.With(slog.String("method", req.Method), slog.String("id", string(req.ID)))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(mcpjsonrpc.HeaderSessionID, sessionID)
	httpReq.Header.Set(mcpjsonrpc.HeaderProtocolVersion, req.ProtocolVersion)

	log.Debug("Sending request envelope", slog.Int("size", len(body)))
	resp, err := t.client.Do(httpReq)
	if err != nil {
		log.Warn("HTTP request failed", slog.Any("error", err))
		return nil, fmt.Errorf("request execution failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Received non-success status code", slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var envelope mcpjsonrpc.Response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	return &envelope, nil
}
