package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/observability"
	"github.com/propertyhub/propertyhub/internal/session"
	"github.com/propertyhub/propertyhub/internal/view"
)

// Workspace is everything the gateway holds for one browser session: the
// session store and the clients acting on its behalf.
type Workspace struct {
	ID        string
	Store     *session.Store
	Auth      *apiclient.AuthAPI
	Resources *apiclient.Resources
	Gate      *view.Gate
}

// Config configures a Registry.
type Config struct {
	UpstreamURL     string
	UpstreamTimeout time.Duration
	RetryPolicy     apiclient.RetryPolicy
	StoragePrefix   string
	StorageTTL      time.Duration
	CacheSize       int
	// Transport overrides the instrumented default base transport.
	Transport http.RoundTripper
}

// Registry hands out one Workspace per browser session, keeping the most
// recently used ones in memory. Evicted workspaces are rebuilt from Redis.
type Registry struct {
	cfg     Config
	redis   redis.Cmdable
	logger  *slog.Logger
	metrics *observability.Metrics
	decoder *credential.Decoder

	mu    sync.Mutex
	cache *lru.Cache[string, *Workspace]
	loads singleflight.Group
}

// NewRegistry builds a Registry.
func NewRegistry(cfg Config, client redis.Cmdable, logger *slog.Logger, metrics *observability.Metrics) (*Registry, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.StoragePrefix == "" {
		cfg.StoragePrefix = "propertyhub:credential"
	}
	if cfg.Transport == nil {
		cfg.Transport = apiclient.NewTransport()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		cfg:     cfg,
		redis:   client,
		logger:  logger,
		metrics: metrics,
		decoder: credential.NewDecoder(time.Now),
	}
	cache, err := lru.NewWithEvict[string, *Workspace](cfg.CacheSize, func(string, *Workspace) {
		r.metrics.SetWorkspaces(r.cache.Len())
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: workspace cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Workspace returns the workspace of browser session id, restoring its
// persisted credential on first use. Concurrent first visits of the same
// session share one restore; other sessions are not held up by it.
func (r *Registry) Workspace(ctx context.Context, id string) (*Workspace, error) {
	if ws, ok := r.cache.Get(id); ok {
		return ws, nil
	}
	v, err, _ := r.loads.Do(id, func() (any, error) {
		if ws, ok := r.cache.Get(id); ok {
			return ws, nil
		}
		ws, err := r.build(id)
		if err != nil {
			return nil, err
		}
		if err := ws.Store.Restore(context.WithoutCancel(ctx)); err != nil {
			return nil, fmt.Errorf("gateway: restore %s: %w", id, err)
		}
		r.mu.Lock()
		r.cache.Add(id, ws)
		n := r.cache.Len()
		r.mu.Unlock()
		r.metrics.SetWorkspaces(n)
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// Forget drops the workspace of browser session id.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(id)
	r.metrics.SetWorkspaces(r.cache.Len())
}

// Len reports the number of cached workspaces.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) build(id string) (*Workspace, error) {
	auth, err := apiclient.NewAuthAPI(r.cfg.UpstreamURL, r.cfg.Transport, nil, r.cfg.UpstreamTimeout)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With(slog.String("workspace", id))
	store := session.NewStore(session.Options{
		Auth:      auth,
		Storage:   session.NewRedisStorage(r.redis, session.Namespace(r.cfg.StoragePrefix, id), r.cfg.StorageTTL),
		Decoder:   r.decoder,
		Logger:    logger,
		OnRefresh: r.metrics.ObserveRefresh,
	})
	client := apiclient.NewHTTPClient(r.cfg.Transport, auth.Jar(), apiclient.PipelineOptions{
		Source:  store,
		Policy:  r.cfg.RetryPolicy,
		Timeout: r.cfg.UpstreamTimeout,
		Logger:  logger,
		OnRetry: r.metrics.ObserveRetry,
	})
	resources, err := apiclient.NewResources(r.cfg.UpstreamURL, client)
	if err != nil {
		return nil, err
	}
	return &Workspace{ID: id, Store: store, Auth: auth, Resources: resources, Gate: view.NewGate(store)}, nil
}
