package mcpjsonrpc

import "context"

// ClientTrace holds hooks a client runs while sending envelopes. Any hook may
// be nil.
type ClientTrace struct {
	// SendingRequest is called with the exact envelope just before it is
	// handed to the transport.
	SendingRequest func(req *Request)
}

type clientTraceKey struct{}

// WithClientTrace returns a context carrying trace.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, clientTraceKey{}, trace)
}

// ContextClientTrace returns the trace attached to ctx, or nil.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientTraceKey{}).(*ClientTrace)
	return trace
}
