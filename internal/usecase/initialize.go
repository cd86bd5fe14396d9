package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/i2y/mcptrace/internal/domain"
)

// ServerIdentity describes what the server announces during the handshake.
type ServerIdentity struct {
	Name    string
	Version string
	// ProtocolVersions lists supported versions, most preferred first.
	ProtocolVersions []string
	Features         map[domain.Feature]domain.FeatureState
}

// InitializeRequest carries the client side of the handshake.
type InitializeRequest struct {
	SessionID       string
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
}

// InitializeUseCase negotiates capabilities and records server-side sessions.
type InitializeUseCase struct {
	identity   ServerIdentity
	repository ToolRepository
	sessions   SessionStore
	now        func() time.Time
	logger     *slog.Logger
}

// NewInitializeUseCase creates a new InitializeUseCase.
func NewInitializeUseCase(identity ServerIdentity, repository ToolRepository, sessions SessionStore, logger *slog.Logger) *InitializeUseCase {
	return &InitializeUseCase{
		identity:   identity,
		repository: repository,
		sessions:   sessions,
		now:        time.Now,
		logger:     logger.With("usecase", "Initialize"),
	}
}

// Execute answers an initialize request with the server capabilities,
// including the live tool snapshot, and records the session.
func (uc *InitializeUseCase) Execute(ctx context.Context, req InitializeRequest) (*domain.InitializeResult, error) {
	log := uc.logger.With(slog.String("session_id", req.SessionID), slog.String("client", req.ClientName))
	if req.SessionID == "" {
		log.Warn("Initialize request without session id")
		return nil, ErrMissingSessionID
	}

	version := uc.negotiateVersion(req.ProtocolVersion)
	tools, err := uc.repository.List(ctx)
	if err != nil {
		log.Error("Failed to list tools for capabilities", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	now := uc.now()
	record := domain.SessionRecord{
		ID:              req.SessionID,
		ClientName:      req.ClientName,
		ClientVersion:   req.ClientVersion,
		ProtocolVersion: version,
		CreatedAt:       now,
		LastActiveAt:    now,
	}
	if err := uc.sessions.Save(ctx, record); err != nil {
		log.Warn("Failed to record session", slog.Any("error", err))
		return nil, fmt.Errorf("failed to record session %s: %w", req.SessionID, err)
	}

	log.Info("Session initialized",
		slog.String("requested_version", req.ProtocolVersion),
		slog.String("negotiated_version", version),
		slog.Int("tool_count", len(tools)))

	return &domain.InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      domain.ServerInfo{Name: uc.identity.Name, Version: uc.identity.Version},
		Capabilities: domain.Capabilities{
			Version:  version,
			Tools:    tools,
			Features: maps.Clone(uc.identity.Features),
		},
	}, nil
}

// RequireSession fails with ErrSessionNotInitialized unless id completed a handshake.
func (uc *InitializeUseCase) RequireSession(ctx context.Context, id string) error {
	if id == "" {
		return ErrSessionNotInitialized
	}
	if _, err := uc.sessions.Touch(ctx, id); err != nil {
		return err
	}
	return nil
}

// Sessions lists the recorded sessions.
func (uc *InitializeUseCase) Sessions(ctx context.Context) ([]domain.SessionRecord, error) {
	return uc.sessions.List(ctx)
}

// negotiateVersion echoes a supported requested version, otherwise offers the
// server's preferred one and leaves the decision to the client.
func (uc *InitializeUseCase) negotiateVersion(requested string) string {
	if slices.Contains(uc.identity.ProtocolVersions, requested) {
		return requested
	}
	if len(uc.identity.ProtocolVersions) == 0 {
		return requested
	}
	return uc.identity.ProtocolVersions[0]
}
