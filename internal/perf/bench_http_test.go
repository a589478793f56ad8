package perf

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/propertyhub/propertyhub/internal/app"
	"github.com/propertyhub/propertyhub/internal/devapi"
	"github.com/propertyhub/propertyhub/internal/rbac"
	_ "github.com/propertyhub/propertyhub/testing"
)

func newGateway(tb testing.TB) http.Handler {
	tb.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := devapi.New(devapi.Config{Secret: "dev", BcryptCost: bcrypt.MinCost}, quiet)
	if err != nil {
		tb.Fatalf("devapi: %v", err)
	}
	upstream := httptest.NewServer(backend.Routes())
	tb.Cleanup(upstream.Close)

	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })

	gw, err := app.NewGateway(&app.Config{
		AppEnv:          "test",
		SessionSecret:   "s",
		SessionTTL:      time.Hour,
		CSRFSecret:      "c",
		UpstreamURL:     upstream.URL,
		UpstreamTimeout: time.Second,
	}, quiet, client, http.DefaultTransport)
	if err != nil {
		tb.Fatalf("gateway: %v", err)
	}
	return gw.Handler
}

func TestGatewayLatencyTargets(t *testing.T) {
	handler := newGateway(t)
	scenarios := []struct {
		name      string
		path      string
		threshold time.Duration
	}{
		{name: "healthz", path: "/healthz", threshold: 50 * time.Millisecond},
		{name: "session", path: "/api/session", threshold: 250 * time.Millisecond},
		{name: "login page", path: "/login", threshold: 250 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 40)
		for i := 0; i < 40; i++ {
			start := time.Now()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, scenario.path, nil))
			samples = append(samples, time.Since(start))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status %d", scenario.name, rec.Code)
			}
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkSessionSummary(b *testing.B) {
	handler := newGateway(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		// distinct clients so the per-IP limiter stays out of the measurement
		req.RemoteAddr = fmt.Sprintf("10.%d.%d.%d:4000", i>>16&0xff, i>>8&0xff, i&0xff)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkPermissionCheck(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = rbac.HasPermission(rbac.RoleLandlord, rbac.ResourceInvoices, rbac.ActionUpdate)
	}
}

func BenchmarkNavigation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = rbac.Navigation(rbac.RoleAdmin)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
