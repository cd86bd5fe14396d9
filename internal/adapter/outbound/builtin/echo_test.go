package builtin_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcptrace/internal/adapter/outbound/builtin"
	"github.com/i2y/mcptrace/internal/adapter/outbound/memrepo"
)

func TestEcho(t *testing.T) {
	got, err := builtin.Echo(context.Background(), map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "hi"}, got)

	_, err = builtin.Echo(context.Background(), map[string]interface{}{"text": 3})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.NewInMemoryToolRepository(slog.New(slog.DiscardHandler))
	require.NoError(t, builtin.Register(ctx, repo))

	tool, err := repo.FindToolByName(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, tool.InputSchema.Required)
	assert.Error(t, builtin.Register(ctx, repo), "second registration must be rejected")
}
