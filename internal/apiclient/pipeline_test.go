package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
	_ "github.com/propertyhub/propertyhub/testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func issue(t *testing.T, role rbac.Role, ttl time.Duration) string {
	t.Helper()
	issuer, err := credential.NewIssuer("backend-secret", time.Hour, nil)
	require.NoError(t, err)
	token, err := issuer.IssueWithExpiry(credential.Identity{ID: 1, Username: "root", Role: role}, time.Now().Add(ttl))
	require.NoError(t, err)
	return token
}

type harness struct {
	server    *httptest.Server
	store     *session.Store
	auth      *apiclient.AuthAPI
	resources *apiclient.Resources
	sleeps    []time.Duration
	retries   []string
	mu        sync.Mutex
}

func newHarness(t *testing.T, handler http.Handler, policy apiclient.RetryPolicy) *harness {
	t.Helper()
	h := &harness{server: httptest.NewServer(handler)}
	t.Cleanup(h.server.Close)

	auth, err := apiclient.NewAuthAPI(h.server.URL, http.DefaultTransport, nil, 10*time.Second)
	require.NoError(t, err)
	h.auth = auth
	h.store = session.NewStore(session.Options{Auth: auth})
	client := apiclient.NewHTTPClient(http.DefaultTransport, auth.Jar(), apiclient.PipelineOptions{
		Source:  h.store,
		Policy:  policy,
		Timeout: 10 * time.Second,
		OnRetry: func(reason string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.retries = append(h.retries, reason)
		},
		Sleep: func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	})
	h.resources, err = apiclient.NewResources(h.server.URL, client)
	require.NoError(t, err)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestConcurrentUnauthorizedRefreshesOnce(t *testing.T) {
	stale := issue(t, rbac.RoleAdmin, time.Hour)
	renewed := issue(t, rbac.RoleAdmin, 2*time.Hour)

	var refreshes atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(2)
	var seenMu sync.Mutex
	var retriedWith []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: apiclient.RenewalCookie, Value: "renew", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"access_token": stale}})
	})
	mux.HandleFunc("POST /api/v1/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		if c, err := r.Cookie(apiclient.RenewalCookie); err != nil || c.Value != "renew" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
			return
		}
		time.Sleep(20 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": renewed})
	})
	mux.HandleFunc("GET /api/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer " + renewed:
			seenMu.Lock()
			retriedWith = append(retriedWith, renewed)
			seenMu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]int{{"id": 1}}})
		default:
			arrived.Done()
			arrived.Wait()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
		}
	})
	h := newHarness(t, mux, apiclient.DefaultRetryPolicy)

	_, err := h.store.Login(context.Background(), session.LoginRequest{Username: "root", Password: "pw"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := h.resources.List(context.Background(), rbac.RoleAdmin, rbac.ResourceUsers)
			if err == nil && string(payload) == "" {
				err = errors.New("empty payload")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, []string{renewed, renewed}, retriedWith)
	require.Equal(t, renewed, h.store.Credential())
}

func TestRefreshFailurePropagatesOriginalError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": issue(t, rbac.RoleLandlord, time.Hour)})
	})
	var refreshes atomic.Int32
	mux.HandleFunc("POST /api/v1/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Refresh token not found"})
	})
	mux.HandleFunc("GET /api/v1/landlord/properties", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token revoked"})
	})
	h := newHarness(t, mux, apiclient.DefaultRetryPolicy)
	_, err := h.store.Login(context.Background(), session.LoginRequest{Username: "l", Password: "pw"})
	require.NoError(t, err)

	_, err = h.resources.List(context.Background(), rbac.RoleLandlord, rbac.ResourceProperties)
	var statusErr *apiclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode())
	require.Equal(t, "token revoked", statusErr.UpstreamMessage())
	require.Equal(t, int32(1), refreshes.Load())
	require.False(t, h.store.Snapshot().Authenticated())
	require.Equal(t, session.MessageSessionExpired, h.store.Snapshot().Err)
}

func TestRateLimitedRequestIsRetriedTransparently(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tenant/leases", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []string{"lease"}})
	})
	h := newHarness(t, mux, apiclient.DefaultRetryPolicy)

	payload, err := h.resources.List(context.Background(), rbac.RoleTenant, rbac.ResourceLeases)
	require.NoError(t, err)
	require.JSONEq(t, `["lease"]`, string(payload))
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, []time.Duration{3 * time.Second}, h.sleeps)
	require.Equal(t, []string{apiclient.ReasonRateLimited}, h.retries)
}

func TestRateLimitRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
	})
	h := newHarness(t, handler, apiclient.RetryPolicy{Backoff: 3 * time.Second, Multiplier: 2, MaxRetries: 2})

	_, err := h.resources.List(context.Background(), rbac.RoleTenant, rbac.ResourceLeases)
	var statusErr *apiclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.Status)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, h.sleeps)
}

func TestPipelineReplaysBodyAndSkipsStaleRefresh(t *testing.T) {
	source := &staticSource{credential: "old"}
	var bodies []string
	var auths []string
	base := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(data))
		auths = append(auths, req.Header.Get("Authorization"))
		status := http.StatusCreated
		if len(bodies) == 1 {
			// Another caller renewed the credential while this request was in flight.
			source.credential = "new"
			status = http.StatusUnauthorized
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(http.NoBody), Header: http.Header{}, Request: req}, nil
	})
	pipeline := apiclient.NewPipeline(base, apiclient.PipelineOptions{Source: source})
	require.Same(t, pipeline, apiclient.NewPipeline(pipeline, apiclient.PipelineOptions{}))

	req, err := http.NewRequest(http.MethodPost, "http://backend/api/v1/admin/users", io.NopCloser(strings.NewReader(`{"username":"x"}`)))
	require.NoError(t, err)
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, []string{`{"username":"x"}`, `{"username":"x"}`}, bodies)
	require.Equal(t, []string{"Bearer old", "Bearer new"}, auths)
	require.Zero(t, source.refreshes)
}

func TestResourcesFailFastOnDeniedAction(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }), apiclient.DefaultRetryPolicy)

	err := h.resources.Delete(context.Background(), rbac.RoleTenant, rbac.ResourceUsers, "3")
	require.ErrorIs(t, err, rbac.ErrNotPermitted)
	require.EqualError(t, err, "rbac: not permitted: Tenant cannot delete users")

	_, err = h.resources.List(context.Background(), rbac.RoleLandlord, rbac.ResourceTenants)
	require.ErrorIs(t, err, apiclient.ErrNoEndpoint)
	require.Zero(t, calls.Load())
}

func TestExpireRenewalSecret(t *testing.T) {
	h := newHarness(t, http.NotFoundHandler(), apiclient.DefaultRetryPolicy)
	u, err := url.Parse(h.server.URL)
	require.NoError(t, err)
	h.auth.Jar().SetCookies(u, []*http.Cookie{{Name: apiclient.RenewalCookie, Value: "renew", Path: "/"}})
	require.Len(t, h.auth.Jar().Cookies(u), 1)

	h.auth.ExpireRenewalSecret()
	require.Empty(t, h.auth.Jar().Cookies(u))
}

type staticSource struct {
	credential string
	refreshes  int
}

func (s *staticSource) Credential() string { return s.credential }

func (s *staticSource) Refresh(context.Context) (string, error) {
	s.refreshes++
	return s.credential, nil
}
