package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

func TestServeToolsUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tools := []domain.Tool{
		{Name: "echo", Description: "Echo text back"},
		{Name: "get_reminder", Description: "Fetch a reminder"},
	}

	tests := []struct {
		name      string
		listTools []domain.Tool
		listErr   error
		wantTools []domain.Tool
		wantErr   bool
	}{
		{name: "lists tools", listTools: tools, wantTools: tools},
		{name: "empty registry", listTools: []domain.Tool{}, wantTools: []domain.Tool{}},
		{name: "repository error", listErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockToolRepository)
			repo.On("List", ctx).Return(tt.listTools, tt.listErr).Once()

			uc := usecase.NewServeToolsUseCase(repo, logger)
			got, err := uc.Execute(ctx)

			if tt.wantErr {
				assert.ErrorContains(t, err, "failed to list tools from repository")
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantTools, got)
			}
			repo.AssertExpectations(t)
		})
	}
}
