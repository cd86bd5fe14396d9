package mcpclient

import (
	"sync"

	"github.com/google/uuid"

	"github.com/i2y/mcptrace/internal/domain"
)

// Session is the client-side negotiated state. The id is generated at
// construction and never changes; capabilities are nil until Initialize
// succeeds and are set exactly once.
type Session struct {
	id       string
	endpoint string

	mu           sync.RWMutex
	capabilities *domain.Capabilities
	serverInfo   domain.ServerInfo
	version      string
}

func newSession(endpoint string) *Session {
	return &Session{id: uuid.NewString(), endpoint: endpoint}
}

// ID returns the opaque session identifier sent with every request.
func (s *Session) ID() string { return s.id }

// Endpoint returns the server endpoint the session talks to.
func (s *Session) Endpoint() string { return s.endpoint }

// Initialized reports whether the handshake completed.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities != nil
}

// Capabilities returns a copy of the negotiated capabilities, nil before Initialize.
func (s *Session) Capabilities() *domain.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.capabilities == nil {
		return nil
	}
	caps := *s.capabilities
	caps.Tools = make([]domain.Tool, len(s.capabilities.Tools))
	for i, t := range s.capabilities.Tools {
		caps.Tools[i] = t.Clone()
	}
	caps.Features = make(map[domain.Feature]domain.FeatureState, len(s.capabilities.Features))
	for f, state := range s.capabilities.Features {
		caps.Features[f] = state
	}
	return &caps
}

// ServerInfo returns the identity announced by the server.
func (s *Session) ServerInfo() domain.ServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverInfo
}

// ProtocolVersion returns the negotiated version, empty before Initialize.
func (s *Session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Session) establish(result *domain.InitializeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := result.Capabilities
	s.capabilities = &caps
	s.serverInfo = result.ServerInfo
	s.version = result.ProtocolVersion
}
