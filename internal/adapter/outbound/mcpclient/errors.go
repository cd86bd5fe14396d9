package mcpclient

import (
	"errors"
	"fmt"

	"github.com/i2y/mcptrace/internal/usecase"
	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

// ErrNotInitialized is returned, before any network call, by operations that
// require a completed initialize handshake.
var ErrNotInitialized = errors.New("session not initialized: call Initialize first")

// ErrAlreadyInitialized is returned by Initialize on an initialized session.
// Sessions do not support re-negotiation.
var ErrAlreadyInitialized = errors.New("session already initialized")

// InitializationFailedError reports a failed handshake. The cause is kept as
// text only.
type InitializationFailedError struct {
	Reason string
}

func (e *InitializationFailedError) Error() string {
	return "initialization failed: " + e.Reason
}

// TransportError reports a request that never produced a usable response
// envelope: connection failures, non-success HTTP statuses, malformed or
// mismatched envelopes.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets callers match any transport failure with usecase.ErrTransportFailure.
func (e *TransportError) Is(target error) bool {
	return target == usecase.ErrTransportFailure
}

// RPCError is the error envelope returned by the server.
type RPCError = mcpjsonrpc.Error

// IsToolNotFound reports whether err is a server rejection for an unknown tool.
func IsToolNotFound(err error) bool {
	return hasCode(err, mcpjsonrpc.CodeServerErrorToolNotFound)
}

// IsInvalidParams reports whether err is a server rejection of the arguments.
func IsInvalidParams(err error) bool {
	return hasCode(err, mcpjsonrpc.CodeInvalidParams)
}

func hasCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
