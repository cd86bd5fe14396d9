package usecase_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

// MockToolRepository is a mock implementation of the ToolRepository interface.
type MockToolRepository struct {
	mock.Mock
}

func (m *MockToolRepository) Register(ctx context.Context, tool domain.Tool, handler usecase.ToolHandler) error {
	args := m.Called(ctx, tool, handler)
	return args.Error(0)
}

func (m *MockToolRepository) List(ctx context.Context) ([]domain.Tool, error) {
	args := m.Called(ctx)
	tools, _ := args.Get(0).([]domain.Tool)
	return tools, args.Error(1)
}

func (m *MockToolRepository) FindToolByName(ctx context.Context, name string) (*domain.Tool, error) {
	args := m.Called(ctx, name)
	tool, _ := args.Get(0).(*domain.Tool)
	return tool, args.Error(1)
}

func (m *MockToolRepository) FindHandlerByName(ctx context.Context, name string) (usecase.ToolHandler, error) {
	args := m.Called(ctx, name)
	handler, _ := args.Get(0).(usecase.ToolHandler)
	return handler, args.Error(1)
}

// MockSessionStore is a mock implementation of the SessionStore interface.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Save(ctx context.Context, session domain.SessionRecord) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Touch(ctx context.Context, id string) (*domain.SessionRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*domain.SessionRecord)
	return record, args.Error(1)
}

func (m *MockSessionStore) List(ctx context.Context) ([]domain.SessionRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]domain.SessionRecord)
	return records, args.Error(1)
}

// MockCallObserver records observations.
type MockCallObserver struct {
	mock.Mock
}

func (m *MockCallObserver) ObserveCall(ctx context.Context, observation usecase.CallObservation) {
	m.Called(ctx, observation)
}

// MockToolInvoker is a mock implementation of the ToolInvoker interface.
type MockToolInvoker struct {
	mock.Mock
}

func (m *MockToolInvoker) Invoke(ctx context.Context, details usecase.InvocationDetails, params map[string]interface{}) (interface{}, error) {
	args := m.Called(ctx, details, params)
	return args.Get(0), args.Error(1)
}
