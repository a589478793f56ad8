package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/propertyhub/propertyhub/internal/auth"
	"github.com/propertyhub/propertyhub/internal/dashboard"
	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/observability"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/shared"
	"github.com/propertyhub/propertyhub/internal/view"
)

// SessionCookie names the browser session cookie.
const SessionCookie = "propertyhub_session"

// Gateway is the assembled dashboard gateway.
type Gateway struct {
	Handler  http.Handler
	Registry *gateway.Registry
	Metrics  *observability.Metrics
}

// NewGateway wires the gateway components. A nil transport selects the
// instrumented default.
func NewGateway(cfg *Config, logger *slog.Logger, redisClient redis.Cmdable, transport http.RoundTripper) (*Gateway, error) {
	metrics := observability.NewMetrics()

	registry, err := gateway.NewRegistry(gateway.Config{
		UpstreamURL:     cfg.UpstreamURL,
		UpstreamTimeout: cfg.UpstreamTimeout,
		RetryPolicy:     cfg.RetryPolicy(),
		StoragePrefix:   cfg.CredentialStoragePrefix,
		StorageTTL:      cfg.SessionTTL,
		CacheSize:       cfg.WorkspaceCacheSize,
		Transport:       transport,
	}, redisClient, logger, metrics)
	if err != nil {
		return nil, err
	}

	templates, err := view.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	sessionManager := shared.NewSessionManager(redisClient, SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	guard := rbac.Middleware{Resolve: gateway.Resolve, Logger: logger}

	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Registry:           registry,
		AuthHandler:        auth.NewHandler(logger, templates, sessionManager, csrfManager, registry, metrics),
		DashboardHandler:   dashboard.NewHandler(logger, templates, csrfManager, guard),
		PermissionsHandler: rbac.NewPermissionsHandler(guard),
		Metrics:            metrics,
	})
	return &Gateway{Handler: router, Registry: registry, Metrics: metrics}, nil
}
