package devapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/devapi"
	"github.com/propertyhub/propertyhub/internal/gateway"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
	_ "github.com/propertyhub/propertyhub/testing"
)

const seedPassword = "changeme123"

func newServer(t *testing.T, cfg devapi.Config) (*devapi.Server, *httptest.Server) {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "dev-secret"
	}
	if cfg.SeedPassword == "" {
		cfg.SeedPassword = seedPassword
	}
	cfg.BcryptCost = bcrypt.MinCost
	srv, err := devapi.New(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestLoginIssuesCredentialAndRenewalCookie(t *testing.T) {
	srv, ts := newServer(t, devapi.Config{})

	resp := postJSON(t, ts.Client(), ts.URL+"/api/v1/login", `{"email":"landlord@propertyhub.local","password":"`+seedPassword+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Login successful", body.Message)

	claims, err := srv.Issuer().Verify(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "landlord", claims.Role)

	var renewal *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == apiclient.RenewalCookie {
			renewal = c
		}
	}
	require.NotNil(t, renewal)
	assert.True(t, renewal.HttpOnly)
	assert.Equal(t, "/", renewal.Path)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, ts := newServer(t, devapi.Config{})

	resp := postJSON(t, ts.Client(), ts.URL+"/api/v1/login", `{"username":"tenant","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.Client(), ts.URL+"/api/v1/login", `{"username":"tenant"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginIsRateLimited(t *testing.T) {
	_, ts := newServer(t, devapi.Config{LoginRateLimit: 2})

	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.Client(), ts.URL+"/api/v1/login", `{"username":"tenant","password":"wrong"}`)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := postJSON(t, ts.Client(), ts.URL+"/api/v1/login", `{"username":"tenant","password":"wrong"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRegisterConflictsAndValidation(t *testing.T) {
	_, ts := newServer(t, devapi.Config{})

	resp := postJSON(t, ts.Client(), ts.URL+"/api/v1/register",
		`{"username":"newbie","email":"newbie@example.com","password":"longenough","role":"tenant"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, ts.Client(), ts.URL+"/api/v1/register",
		`{"username":"newbie","email":"other@example.com","password":"longenough","role":"tenant"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, ts.Client(), ts.URL+"/api/v1/register",
		`{"username":"x","email":"not-an-email","password":"short","role":"tenant"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.Client(), ts.URL+"/api/v1/register",
		`{"username":"wizard","email":"wizard@example.com","password":"longenough","role":"wizard"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshRequiresRenewalCookie(t *testing.T) {
	_, ts := newServer(t, devapi.Config{})

	resp := postJSON(t, ts.Client(), ts.URL+"/api/v1/refresh-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/refresh-token", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: apiclient.RenewalCookie, Value: "forged"})
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResourceGuardChecksOwnerAndPermission(t *testing.T) {
	srv, ts := newServer(t, devapi.Config{})
	tenant, err := srv.Issuer().Issue(identity(3, rbac.RoleTenant))
	require.NoError(t, err)
	admin, err := srv.Issuer().Issue(identity(1, rbac.RoleAdmin))
	require.NoError(t, err)

	get := func(path, token string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/admin/users", ""))
	assert.Equal(t, http.StatusForbidden, get("/api/v1/admin/users", tenant))
	assert.Equal(t, http.StatusOK, get("/api/v1/admin/users", admin))
	assert.Equal(t, http.StatusOK, get("/tenant/leases", tenant))
	assert.Equal(t, http.StatusOK, get("/api/v1/admin/dashboard/stats", admin))
	assert.Equal(t, http.StatusNotFound, get("/api/v1/admin/properties/999", admin))
}

func TestGatewayWorkspaceAgainstDevBackend(t *testing.T) {
	_, ts := newServer(t, devapi.Config{TokenTTL: time.Minute})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry, err := gateway.NewRegistry(gateway.Config{
		UpstreamURL:     ts.URL,
		UpstreamTimeout: 5 * time.Second,
		RetryPolicy:     apiclient.DefaultRetryPolicy,
		Transport:       http.DefaultTransport,
	}, client, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	ws, err := registry.Workspace(ctx, "browser-1")
	require.NoError(t, err)

	_, err = ws.Store.Login(ctx, session.LoginRequest{Email: "landlord@propertyhub.local", Password: seedPassword})
	require.NoError(t, err)
	require.Equal(t, rbac.RoleLandlord, ws.Store.Role())

	raw, err := ws.Resources.List(ctx, ws.Store.Role(), rbac.ResourceProperties)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(raw, &rows))
	assert.Len(t, rows, 2)

	_, err = ws.Resources.List(ctx, ws.Store.Role(), rbac.ResourceUsers)
	require.Error(t, err)

	token, err := ws.Store.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	ws.Store.Logout(ctx)
	assert.False(t, ws.Store.Snapshot().Authenticated())
	_, err = ws.Store.Refresh(ctx)
	require.Error(t, err)
}
