package observability

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type ruleFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`propertyhub_[a-z_]+`)

func loadGatewayRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "gateway.yml"))
	require.NoError(t, err)

	var file ruleFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	for _, group := range file.Groups {
		if group.Name == "gateway" {
			return group.Rules
		}
	}
	t.Fatal("gateway alert group missing")
	return nil
}

// exportedNames touches every gateway series so vectors appear in Gather.
func exportedNames(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.requestsTotal.WithLabelValues("/login", "200").Inc()
	m.requestDuration.WithLabelValues("/login").Observe(0.01)
	m.ObserveRefresh(nil)
	m.ObserveRefresh(errors.New("expired"))
	m.ObserveRetry("rate_limited")
	m.ObserveAuthFailure("invalid_credentials")
	m.SetWorkspaces(1)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	return names
}

func TestGatewayAlertRules(t *testing.T) {
	rules := loadGatewayRules(t)
	expected := map[string]struct {
		severity string
		anchor   string
	}{
		"RefreshFailureSpike": {"warning", "refresh-failures"},
		"UpstreamRateLimited": {"warning", "rate-limiting"},
		"HighErrorRate":       {"critical", "high-error-rate"},
	}
	require.Len(t, rules, len(expected))

	for _, rule := range rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, "docs/runbook-gateway.md#"+want.anchor, rule.Annotations["runbook"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
	}
}

func TestAlertExpressionsUseExportedMetrics(t *testing.T) {
	names := exportedNames(t)
	for _, rule := range loadGatewayRules(t) {
		used := metricName.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, used, "rule %s references no gateway metric", rule.Alert)
		for _, name := range used {
			require.True(t, names[name], "rule %s uses unknown metric %s", rule.Alert, name)
		}
	}
}
