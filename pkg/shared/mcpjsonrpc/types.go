package mcpjsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Based on JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification
// with an additional protocolVersion marker on every request.

// Version is the JSON-RPC version carried on every envelope.
const Version = "2.0"

// Methods understood by the protocol server.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Transport headers carried on every request.
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "Mcp-Protocol-Version"
)

// Request represents a request envelope.
type Request struct {
	Version         string          `json:"jsonrpc,omitempty"`
	ProtocolVersion string          `json:"protocolVersion"`
	ID              json.RawMessage `json:"id"`               // string or number, echoed verbatim
	Method          string          `json:"method"`           // one of the Method* constants
	Params          json.RawMessage `json:"params,omitempty"` // method specific
}

// Response represents a response envelope. Exactly one of Result or Error is set.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents the error member of a response envelope.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Error codes. Each failure category has its own sentinel so clients can branch on it.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// -32000 to -32099: Server error (implementation-defined)
	CodeServerErrorToolNotFound          = -32000
	CodeServerErrorSessionNotInitialized = -32002
)

// ErrInvalidEnvelope is returned by Validate for malformed envelopes.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// NewRequest builds a request envelope, marshalling params when non-nil.
func NewRequest(protocolVersion string, id json.RawMessage, method string, params interface{}) (*Request, error) {
	req := &Request{
		Version:         Version,
		ProtocolVersion: protocolVersion,
		ID:              id,
		Method:          method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewResult builds a success response correlated to id.
func NewResult(id json.RawMessage, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{Version: Version, ID: idOrNull(id), Result: raw}, nil
}

// NewError builds an error response correlated to id. data may be nil.
func NewError(id json.RawMessage, code int, message string, data interface{}) *Response {
	rpcErr := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			rpcErr.Data = raw
		}
	}
	return &Response{Version: Version, ID: idOrNull(id), Error: rpcErr}
}

// Validate checks the structural rules of a request envelope. The jsonrpc
// member may be omitted; when present it must be "2.0".
func (r *Request) Validate() error {
	if r.Version != "" && r.Version != Version {
		return fmt.Errorf("%w: jsonrpc must be %q", ErrInvalidEnvelope, Version)
	}
	if r.Method == "" {
		return fmt.Errorf("%w: missing method", ErrInvalidEnvelope)
	}
	if !validID(r.ID) {
		return fmt.Errorf("%w: id must be a string or a number", ErrInvalidEnvelope)
	}
	return nil
}

// Validate checks that exactly one of result or error is present.
func (r *Response) Validate() error {
	hasResult := len(r.Result) > 0 && !bytes.Equal(r.Result, []byte("null"))
	switch {
	case hasResult && r.Error != nil:
		return fmt.Errorf("%w: response carries both result and error", ErrInvalidEnvelope)
	case !hasResult && r.Error == nil:
		return fmt.Errorf("%w: response carries neither result nor error", ErrInvalidEnvelope)
	}
	return nil
}

// SameID reports whether two correlation ids are equal once whitespace is ignored.
func SameID(a, b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

// NumericID encodes n as a correlation id.
func NumericID(n int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", n))
}

func validID(id json.RawMessage) bool {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return false
	}
	switch v.(type) {
	case string, float64:
		return true
	default:
		return false
	}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// InitializeParams defines the "params" of an initialize request.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// ClientInfo identifies the calling client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// CallToolParams defines the "params" of a tools/call request.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ContentBlock is one element of a tool call result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ContentTypeText is the only content block type produced by the server.
const ContentTypeText = "text"

// CallToolResult defines the "result" of a tools/call response.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
}

// TextResult serializes payload into the single text block convention.
// Strings are carried as-is; everything else is JSON encoded.
func TextResult(payload interface{}) (*CallToolResult, error) {
	var text string
	switch v := payload.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize tool result: %w", err)
		}
		text = string(raw)
	}
	return &CallToolResult{Content: []ContentBlock{{Type: ContentTypeText, Text: text}}}, nil
}

// Text concatenates the text of all text blocks.
func (r *CallToolResult) Text() string {
	var buf bytes.Buffer
	for _, block := range r.Content {
		if block.Type == ContentTypeText {
			buf.WriteString(block.Text)
		}
	}
	return buf.String()
}

// Decode unmarshals the text payload as JSON into v.
func (r *CallToolResult) Decode(v interface{}) error {
	if len(r.Content) == 0 {
		return errors.New("tool result has no content")
	}
	if err := json.Unmarshal([]byte(r.Text()), v); err != nil {
		return fmt.Errorf("failed to decode tool result text: %w", err)
	}
	return nil
}
