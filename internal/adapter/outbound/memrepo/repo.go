package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

// InMemoryToolRepository provides an in-memory implementation of the ToolRepository.
// Descriptors are copied on the way in and on the way out, so a registered
// schema cannot be changed through a returned value.
type InMemoryToolRepository struct {
	mu       sync.RWMutex
	order    []string                       // Registration order, for stable listings
	tools    map[string]domain.Tool         // Map tool name to Tool definition
	handlers map[string]usecase.ToolHandler // Map tool name to its handler
	logger   *slog.Logger
}

// NewInMemoryToolRepository creates a new in-memory repository.
func NewInMemoryToolRepository(logger *slog.Logger) *InMemoryToolRepository {
	return &InMemoryToolRepository{
		tools:    make(map[string]domain.Tool),
		handlers: make(map[string]usecase.ToolHandler),
		logger:   logger.With("component", "mem_repo"),
	}
}

// Register stores a tool and its handler.
func (r *InMemoryToolRepository) Register(ctx context.Context, tool domain.Tool, handler usecase.ToolHandler) error {
	if tool.Name == "" {
		return fmt.Errorf("register failed: tool name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("register failed: tool %s has no handler", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		r.logger.Error("Duplicate tool registration", slog.String("tool_name", tool.Name))
		return fmt.Errorf("register %s: %w", tool.Name, usecase.ErrDuplicateTool)
	}
	r.tools[tool.Name] = tool.Clone()
	r.handlers[tool.Name] = handler
	r.order = append(r.order, tool.Name)
	r.logger.Info("Registered tool", slog.String("tool_name", tool.Name), slog.Int("total_tools", len(r.tools)))
	return nil
}

// List returns a snapshot of all registered tools in registration order.
func (r *InMemoryToolRepository) List(ctx context.Context) ([]domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name].Clone())
	}
	r.logger.Debug("Listed tools from repository", slog.Int("count", len(list)))
	return list, nil
}

// FindToolByName retrieves a copy of a tool definition by its name.
func (r *InMemoryToolRepository) FindToolByName(ctx context.Context, name string) (*domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("Tool definition not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	clone := tool.Clone()
	return &clone, nil
}

// FindHandlerByName retrieves the handler registered for a tool.
func (r *InMemoryToolRepository) FindHandlerByName(ctx context.Context, name string) (usecase.ToolHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	if !ok {
		r.logger.Warn("Tool handler not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	return handler, nil
}
