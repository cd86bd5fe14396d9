package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/i2y/mcptrace/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound            = errors.New("tool not found")
	ErrDuplicateTool           = errors.New("tool already registered")
	ErrSessionNotInitialized   = errors.New("session not initialized")
	ErrMissingSessionID        = errors.New("missing session id")
	ErrTransportFailure        = errors.New("transport failure")
	ErrUnsupportedUpstreamKind = errors.New("unsupported upstream kind")
)

// ToolExecutionError wraps a failure raised inside a tool handler.
// Its message is for server-side logs only; it must not be sent to clients.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// --- Tool Registry Related ---

// ToolHandler executes a tool with decoded arguments. The result is serialized
// into the text content block convention by the caller.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolRepository defines the contract for storing and retrieving tools and
// their handlers. Registration happens once at startup; lookups are read-only.
type ToolRepository interface {
	// Register stores a tool and its handler. It fails with ErrDuplicateTool
	// when a tool with the same name is already present.
	Register(ctx context.Context, tool domain.Tool, handler ToolHandler) error

	// List retrieves a snapshot of all registered tools.
	List(ctx context.Context) ([]domain.Tool, error)

	// FindToolByName retrieves a specific tool definition by its unique name.
	FindToolByName(ctx context.Context, name string) (*domain.Tool, error)

	// FindHandlerByName retrieves the handler registered for a tool.
	FindHandlerByName(ctx context.Context, name string) (ToolHandler, error)
}

// --- Session Related ---

// SessionStore keeps server-side records of initialized sessions.
type SessionStore interface {
	// Save stores a record, replacing any earlier handshake under the same id.
	Save(ctx context.Context, session domain.SessionRecord) error

	// Touch marks activity on a session, failing with ErrSessionNotInitialized
	// for unknown ids.
	Touch(ctx context.Context, id string) (*domain.SessionRecord, error)

	// List returns all known sessions.
	List(ctx context.Context) ([]domain.SessionRecord, error)
}

// --- Observability ---

// CallObservation describes one completed tools/call dispatch.
type CallObservation struct {
	Tool     string
	Outcome  string // "ok", "not_found", "invalid_params" or "error"
	Duration time.Duration
}

// CallObserver receives an observation for every dispatched tool call.
type CallObserver interface {
	ObserveCall(ctx context.Context, observation CallObservation)
}
