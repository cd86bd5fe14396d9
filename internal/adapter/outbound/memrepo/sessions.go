package memrepo

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

// InMemorySessionStore keeps server-side session records for the process lifetime.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionRecord
	now      func() time.Time
	logger   *slog.Logger
}

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore(logger *slog.Logger) *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]domain.SessionRecord),
		now:      time.Now,
		logger:   logger.With("component", "session_store"),
	}
}

// Save stores a session record. A repeated handshake on the same id replaces
// the earlier record, since the client may never have seen that response.
func (s *InMemorySessionStore) Save(ctx context.Context, session domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.sessions[session.ID]
	s.sessions[session.ID] = session
	s.logger.Debug("Session recorded",
		slog.String("session_id", session.ID),
		slog.Bool("replaced", replaced),
		slog.Int("total_sessions", len(s.sessions)))
	return nil
}

// Touch bumps the activity counters of a known session.
func (s *InMemorySessionStore) Touch(ctx context.Context, id string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, usecase.ErrSessionNotInitialized
	}
	session.LastActiveAt = s.now()
	session.Requests++
	s.sessions[id] = session
	return &session, nil
}

// List returns all sessions ordered by creation time.
func (s *InMemorySessionStore) List(ctx context.Context) ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]domain.SessionRecord, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
