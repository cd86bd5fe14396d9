package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i2y/mcptrace/internal/domain"
)

// Call outcomes reported to observers.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeInvalidParams = "invalid_params"
	OutcomeError         = "error"
)

// InvokeToolUseCase handles receiving a tool invocation request and executing it.
type InvokeToolUseCase struct {
	repository ToolRepository
	observer   CallObserver
	logger     *slog.Logger
}

// NewInvokeToolUseCase creates a new InvokeToolUseCase. observer may be nil.
func NewInvokeToolUseCase(repo ToolRepository, observer CallObserver, logger *slog.Logger) *InvokeToolUseCase {
	return &InvokeToolUseCase{
		repository: repo,
		observer:   observer,
		logger:     logger.With("usecase", "InvokeTool"),
	}
}

// Execute finds the tool, validates the arguments against its input schema and
// runs its handler. The call fully resolves before Execute returns.
//
// Errors: ErrToolNotFound (wrapped), *domain.SchemaValidationError, or
// *ToolExecutionError for anything raised by the handler.
func (uc *InvokeToolUseCase) Execute(ctx context.Context, toolName string, params map[string]interface{}) (result interface{}, err error) {
	log := uc.logger.With(slog.String("tool_name", toolName))
	start := time.Now()
	defer func() {
		uc.observe(ctx, toolName, err, time.Since(start))
	}()

	// 1. Find Tool Definition
	tool, err := uc.repository.FindToolByName(ctx, toolName)
	if err != nil {
		log.Warn("Tool definition not found", slog.Any("error", err))
		return nil, fmt.Errorf("tool '%s' definition not found: %w", toolName, err)
	}

	// 2. Validate Parameters against tool.InputSchema
	if err := tool.ValidateInput(params); err != nil {
		log.Warn("Invalid input parameters", slog.Any("error", err))
		return nil, err
	}

	// 3. Find Handler
	handler, err := uc.repository.FindHandlerByName(ctx, toolName)
	if err != nil {
		log.Error("Tool handler not found", slog.Any("error", err))
		return nil, fmt.Errorf("tool '%s' handler not found: %w", toolName, err)
	}

	// 4. Run the handler
	log.Info("Invoking tool handler")
	result, err = runHandler(ctx, handler, params)
	if err != nil {
		log.Error("Tool handler failed", slog.Any("error", err))
		return nil, &ToolExecutionError{Tool: toolName, Err: err}
	}

	log.Info("Tool invocation successful", slog.Duration("elapsed", time.Since(start)))
	log.Debug("Invocation result", slog.Any("result", result))
	return result, nil
}

// runHandler converts a panic inside a handler into an error so that one
// misbehaving tool cannot take the server down.
func runHandler(ctx context.Context, handler ToolHandler, params map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, params)
}

func (uc *InvokeToolUseCase) observe(ctx context.Context, toolName string, err error, elapsed time.Duration) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveCall(ctx, CallObservation{
		Tool:     toolName,
		Outcome:  Outcome(err),
		Duration: elapsed,
	})
}

// Outcome classifies an Execute error into one of the Outcome* constants.
func Outcome(err error) string {
	var execErr *ToolExecutionError
	var schemaErr *domain.SchemaValidationError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &execErr):
		return OutcomeError
	case errors.As(err, &schemaErr):
		return OutcomeInvalidParams
	case errors.Is(err, ErrToolNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
