package memrepo_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcptrace/internal/adapter/outbound/memrepo"
	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

func TestInMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewInMemorySessionStore(slog.New(slog.DiscardHandler))
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, domain.SessionRecord{ID: "b", ClientName: "cli", CreatedAt: created.Add(time.Second)}))
	require.NoError(t, store.Save(ctx, domain.SessionRecord{ID: "a", ClientName: "cli", CreatedAt: created.Add(time.Second)}))
	require.NoError(t, store.Save(ctx, domain.SessionRecord{ID: "c", ClientName: "cli", CreatedAt: created}))

	touched, err := store.Touch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, touched.Requests)
	assert.False(t, touched.LastActiveAt.IsZero())

	touched, err = store.Touch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, touched.Requests)

	_, err = store.Touch(ctx, "unknown")
	assert.ErrorIs(t, err, usecase.ErrSessionNotInitialized)

	list, err := store.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, 2, list[1].Requests)
}

func TestInMemorySessionStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewInMemorySessionStore(slog.New(slog.DiscardHandler))

	require.NoError(t, store.Save(ctx, domain.SessionRecord{ID: "a", ProtocolVersion: "2025-03-26"}))
	_, err := store.Touch(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, domain.SessionRecord{ID: "a", ProtocolVersion: "2025-06-18"}))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2025-06-18", list[0].ProtocolVersion)
	assert.Zero(t, list[0].Requests)
}
