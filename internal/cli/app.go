// Package cli implements the mcptrace subcommands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/i2y/mcptrace/configs"
	"github.com/i2y/mcptrace/internal/adapter/inbound/mcphttp"
	"github.com/i2y/mcptrace/internal/adapter/outbound/builtin"
	"github.com/i2y/mcptrace/internal/adapter/outbound/grpcinvoker"
	"github.com/i2y/mcptrace/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcptrace/internal/adapter/outbound/invoker"
	"github.com/i2y/mcptrace/internal/adapter/outbound/memrepo"
	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

// serverFeatures is what the server announces. Request cancellation reaches
// handlers through the request context; nothing streams or reports progress.
var serverFeatures = map[domain.Feature]domain.FeatureState{
	domain.FeatureCancellation: domain.FeatureImplemented,
	domain.FeatureStreaming:    domain.FeatureUnsupported,
	domain.FeatureProgress:     domain.FeatureUnsupported,
}

// App is the wired server side: registry, use cases and HTTP handlers.
type App struct {
	Repo     *memrepo.InMemoryToolRepository
	InitUC   *usecase.InitializeUseCase
	ServeUC  *usecase.ServeToolsUseCase
	InvokeUC *usecase.InvokeToolUseCase
	Handlers *mcphttp.Handlers
}

// NewApp registers the built-in tools and every tool declared in cfg, then
// builds the use cases over the resulting registry. observer may be nil.
func NewApp(ctx context.Context, cfg *configs.Config, observer usecase.CallObserver, logger *slog.Logger) (*App, error) {
	repo := memrepo.NewInMemoryToolRepository(logger)
	sessions := memrepo.NewInMemorySessionStore(logger)

	if err := builtin.Register(ctx, repo); err != nil {
		return nil, fmt.Errorf("failed to register built-in tools: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	router := invoker.NewRouter(httpinvoker.New(httpClient, logger), grpcinvoker.New(logger), logger)
	for _, decl := range cfg.Tools {
		handler, err := router.Handler(decl.Invocation())
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", decl.Name, err)
		}
		if err := repo.Register(ctx, decl.Descriptor(), handler); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", decl.Name, err)
		}
		logger.Info("Registered upstream tool", slog.String("tool_name", decl.Name), slog.String("upstream", decl.Upstream.Type))
	}

	identity := usecase.ServerIdentity{
		Name:             cfg.ServerName,
		Version:          cfg.ServerVersion,
		ProtocolVersions: cfg.ProtocolVersions,
		Features:         serverFeatures,
	}
	initUC := usecase.NewInitializeUseCase(identity, repo, sessions, logger)
	serveUC := usecase.NewServeToolsUseCase(repo, logger)
	invokeUC := usecase.NewInvokeToolUseCase(repo, observer, logger)

	return &App{
		Repo:     repo,
		InitUC:   initUC,
		ServeUC:  serveUC,
		InvokeUC: invokeUC,
		Handlers: mcphttp.NewHandlers(initUC, serveUC, invokeUC, cfg.RequireSession, logger),
	}, nil
}

// Handler returns the HTTP handler serving the protocol and admin routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Handlers.RegisterRoutes(mux)
	return mux
}
