package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

func TestInvokeToolUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	toolName := "test-tool"
	schemaTool := &domain.Tool{
		Name:        toolName,
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{"param1": domain.StringProp("")}, "param1"),
	}
	inputParams := map[string]interface{}{"param1": "value1"}
	expectedResult := map[string]interface{}{"success": true}

	okHandler := usecase.ToolHandler(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return expectedResult, nil
	})
	failingHandler := usecase.ToolHandler(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return nil, errors.New("upstream exploded with secret details")
	})
	panickingHandler := usecase.ToolHandler(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		panic("nil map")
	})

	tests := []struct {
		name        string
		params      map[string]interface{}
		setupMocks  func(repo *MockToolRepository)
		wantResult  interface{}
		wantOutcome string
		checkErr    func(t *testing.T, err error)
	}{
		{
			name:   "success",
			params: inputParams,
			setupMocks: func(repo *MockToolRepository) {
				repo.On("FindToolByName", ctx, toolName).Return(schemaTool, nil).Once()
				repo.On("FindHandlerByName", ctx, toolName).Return(okHandler, nil).Once()
			},
			wantResult:  expectedResult,
			wantOutcome: usecase.OutcomeOK,
		},
		{
			name:   "tool not found",
			params: inputParams,
			setupMocks: func(repo *MockToolRepository) {
				repo.On("FindToolByName", ctx, toolName).Return(nil, usecase.ErrToolNotFound).Once()
			},
			wantOutcome: usecase.OutcomeNotFound,
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, usecase.ErrToolNotFound)
			},
		},
		{
			name:   "schema violation never reaches the handler",
			params: map[string]interface{}{"param1": 3.0},
			setupMocks: func(repo *MockToolRepository) {
				repo.On("FindToolByName", ctx, toolName).Return(schemaTool, nil).Once()
			},
			wantOutcome: usecase.OutcomeInvalidParams,
			checkErr: func(t *testing.T, err error) {
				var verr *domain.SchemaValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "param1", verr.Violations[0].Field)
			},
		},
		{
			name:   "handler failure is wrapped",
			params: inputParams,
			setupMocks: func(repo *MockToolRepository) {
				repo.On("FindToolByName", ctx, toolName).Return(schemaTool, nil).Once()
				repo.On("FindHandlerByName", ctx, toolName).Return(failingHandler, nil).Once()
			},
			wantOutcome: usecase.OutcomeError,
			checkErr: func(t *testing.T, err error) {
				var execErr *usecase.ToolExecutionError
				require.ErrorAs(t, err, &execErr)
				assert.Equal(t, toolName, execErr.Tool)
			},
		},
		{
			name:   "handler panic is recovered",
			params: inputParams,
			setupMocks: func(repo *MockToolRepository) {
				repo.On("FindToolByName", ctx, toolName).Return(schemaTool, nil).Once()
				repo.On("FindHandlerByName", ctx, toolName).Return(panickingHandler, nil).Once()
			},
			wantOutcome: usecase.OutcomeError,
			checkErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "handler panic: nil map")
			},
		},
		{
			name:   "handler lookup failure",
			params: inputParams,
			setupMocks: func(repo *MockToolRepository) {
				repo.On("FindToolByName", ctx, toolName).Return(schemaTool, nil).Once()
				repo.On("FindHandlerByName", ctx, toolName).Return(nil, usecase.ErrToolNotFound).Once()
			},
			wantOutcome: usecase.OutcomeNotFound,
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, usecase.ErrToolNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockToolRepository)
			observer := new(MockCallObserver)
			tt.setupMocks(repo)
			observer.On("ObserveCall", ctx, mock.MatchedBy(func(o usecase.CallObservation) bool {
				return o.Tool == toolName && o.Outcome == tt.wantOutcome && o.Duration >= 0
			})).Once()

			uc := usecase.NewInvokeToolUseCase(repo, observer, logger)
			result, err := uc.Execute(ctx, toolName, tt.params)

			if tt.checkErr != nil {
				require.Error(t, err)
				tt.checkErr(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantResult, result)
			}
			assert.Equal(t, tt.wantOutcome, usecase.Outcome(err))
			repo.AssertExpectations(t)
			observer.AssertExpectations(t)
		})
	}
}

func TestInvokeToolUseCase_NilObserver(t *testing.T) {
	ctx := context.Background()
	repo := new(MockToolRepository)
	repo.On("FindToolByName", ctx, "free").Return(&domain.Tool{Name: "free"}, nil)
	repo.On("FindHandlerByName", ctx, "free").Return(usecase.ToolHandler(
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return "ok", nil }), nil)

	uc := usecase.NewInvokeToolUseCase(repo, nil, slog.New(slog.DiscardHandler))
	result, err := uc.Execute(ctx, "free", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestUpstreamHandler(t *testing.T) {
	ctx := context.Background()
	details := usecase.InvocationDetails{Type: usecase.UpstreamHTTP, Host: "http://example.com", HTTPMethod: "GET"}
	params := map[string]interface{}{"id": "1"}

	invoker := new(MockToolInvoker)
	invoker.On("Invoke", ctx, details, params).Return("done", nil).Once()

	out, err := usecase.UpstreamHandler(invoker, details)(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	invoker.AssertExpectations(t)
}
