package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/observability"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
	"github.com/propertyhub/propertyhub/internal/shared"
	_ "github.com/propertyhub/propertyhub/testing"
)

func newRegistry(t *testing.T, size int) (*gateway.Registry, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	registry, err := gateway.NewRegistry(gateway.Config{
		UpstreamURL:     "http://127.0.0.1:1",
		UpstreamTimeout: time.Second,
		CacheSize:       size,
		Transport:       http.DefaultTransport,
	}, client, nil, observability.NewMetrics())
	require.NoError(t, err)
	return registry, client
}

func TestRegistryReusesWorkspacePerSession(t *testing.T) {
	registry, _ := newRegistry(t, 2)
	ctx := context.Background()

	a, err := registry.Workspace(ctx, "a")
	require.NoError(t, err)
	again, err := registry.Workspace(ctx, "a")
	require.NoError(t, err)
	require.Same(t, a, again)

	b, err := registry.Workspace(ctx, "b")
	require.NoError(t, err)
	require.NotSame(t, a, b)
	require.Equal(t, 2, registry.Len())

	registry.Forget("a")
	require.Equal(t, 1, registry.Len())
}

func TestRegistryRestoresPersistedCredential(t *testing.T) {
	registry, client := newRegistry(t, 1)
	ctx := context.Background()

	issuer, err := credential.NewIssuer("backend-secret", time.Hour, nil)
	require.NoError(t, err)
	token, err := issuer.Issue(credential.Identity{ID: 5, Username: "ll", Role: rbac.RoleLandlord})
	require.NoError(t, err)
	storage := session.NewRedisStorage(client, session.Namespace("propertyhub:credential", "abc"), 0)
	require.NoError(t, storage.Save(ctx, session.Persisted{Credential: token, Role: rbac.RoleLandlord}))

	ws, err := registry.Workspace(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ws.Store.Snapshot().Loading)
	require.True(t, ws.Store.HasRole(rbac.RoleLandlord))
	require.True(t, ws.Gate.Can("leases", "create"))

	// Eviction keeps the credential in Redis; the next lookup rebuilds it.
	_, err = registry.Workspace(ctx, "other")
	require.NoError(t, err)
	rebuilt, err := registry.Workspace(ctx, "abc")
	require.NoError(t, err)
	require.NotSame(t, ws, rebuilt)
	require.Equal(t, token, rebuilt.Store.Credential())
}

func TestMiddlewareAndResolve(t *testing.T) {
	registry, _ := newRegistry(t, 4)
	var resolved bool
	handler := registry.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, gateway.FromContext(r.Context()))
		_, resolved = gateway.Resolve(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), &shared.Session{ID: "browser-1"}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, resolved)

	_, ok := gateway.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, ok)
}

// gatedRedis holds credential loads for one session until released.
type gatedRedis struct {
	redis.Cmdable
	session string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedRedis) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	if len(keys) > 0 && strings.Contains(keys[0], ":"+g.session+":") {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Cmdable.MGet(ctx, keys...)
}

func TestSlowRestoreDoesNotBlockOtherSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	gated := &gatedRedis{Cmdable: client, session: "slow", entered: make(chan struct{}), release: make(chan struct{})}
	registry, err := gateway.NewRegistry(gateway.Config{
		UpstreamURL: "http://127.0.0.1:1",
		Transport:   http.DefaultTransport,
	}, gated, nil, observability.NewMetrics())
	require.NoError(t, err)
	ctx := context.Background()

	const waiters = 4
	slow := make(chan *gateway.Workspace, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			ws, err := registry.Workspace(ctx, "slow")
			if err != nil {
				ws = nil
			}
			slow <- ws
		}()
	}
	<-gated.entered

	fast := make(chan error, 1)
	go func() {
		_, err := registry.Workspace(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("restoring one session blocked another")
	}

	close(gated.release)
	first := <-slow
	require.NotNil(t, first)
	for i := 1; i < waiters; i++ {
		require.Same(t, first, <-slow)
	}
	require.Equal(t, 2, registry.Len())
}
