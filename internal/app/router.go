package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/propertyhub/propertyhub/internal/auth"
	"github.com/propertyhub/propertyhub/internal/dashboard"
	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/observability"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/shared"
	"github.com/propertyhub/propertyhub/internal/view"
	"github.com/propertyhub/propertyhub/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Templates          *view.Engine
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	Registry           *gateway.Registry
	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Registry:       params.Registry,
		Metrics:        params.Metrics,
	}

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range SessionStack(mwConfig) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		params.AuthHandler.MountRoutes(r)
		params.DashboardHandler.MountRoutes(r)
		if params.PermissionsHandler != nil {
			r.Route("/api/permissions", params.PermissionsHandler.MountRoutes)
		}
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
