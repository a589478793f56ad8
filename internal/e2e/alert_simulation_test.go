package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type alertScenario struct {
	name       string
	severity   string
	threshold  float64
	actual     float64
	window     time.Duration
	runbookRef string
}

var scenarios = []alertScenario{
	{
		name:       "RefreshFailureSpike",
		severity:   "warning",
		threshold:  0.2,
		actual:     0.45,
		window:     10 * time.Minute,
		runbookRef: "docs/runbook-gateway.md#refresh-failures",
	},
	{
		name:       "UpstreamRateLimited",
		severity:   "warning",
		threshold:  1,
		actual:     3.5,
		window:     5 * time.Minute,
		runbookRef: "docs/runbook-gateway.md#rate-limiting",
	},
	{
		name:       "HighErrorRate",
		severity:   "critical",
		threshold:  0.05,
		actual:     0.12,
		window:     5 * time.Minute,
		runbookRef: "docs/runbook-gateway.md#high-error-rate",
	},
}

func TestAlertSimulationProducesFiringAndResolvedLogs(t *testing.T) {
	var logBuilder strings.Builder
	for _, scenario := range scenarios {
		if scenario.actual <= scenario.threshold {
			t.Fatalf("%s: simulated value must breach its threshold", scenario.name)
		}
		logBuilder.WriteString(renderAlertLog("FIRING", scenario))
		logBuilder.WriteString(renderAlertLog("RESOLVED", scenario))
	}

	logOutput := logBuilder.String()
	for _, scenario := range scenarios {
		if !strings.Contains(logOutput, renderAlertLog("FIRING", scenario)) {
			t.Fatalf("expected log to contain firing entry for %s", scenario.name)
		}
		if !strings.Contains(logOutput, renderAlertLog("RESOLVED", scenario)) {
			t.Fatalf("expected log to contain resolved entry for %s", scenario.name)
		}
	}
}

func TestRunbookAnchorsExist(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-gateway.md"))
	if err != nil {
		t.Fatalf("read runbook: %v", err)
	}
	runbook := string(data)
	for _, scenario := range scenarios {
		_, anchor, ok := strings.Cut(scenario.runbookRef, "#")
		if !ok {
			t.Fatalf("%s: runbook ref %q has no anchor", scenario.name, scenario.runbookRef)
		}
		if !strings.Contains(runbook, "## "+anchor+"\n") {
			t.Fatalf("%s: runbook has no section %q", scenario.name, anchor)
		}
	}
}

func renderAlertLog(state string, scenario alertScenario) string {
	return fmt.Sprintf("%s %s severity=%s actual=%.2f threshold=%.2f window=%s runbook=%s\n",
		state, scenario.name, scenario.severity, scenario.actual, scenario.threshold, scenario.window, scenario.runbookRef)
}
