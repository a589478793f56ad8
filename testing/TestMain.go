// Package testing prepares the environment for package tests. Import it for
// its side effects.
package testing

import (
	"os"

	_ "github.com/propertyhub/propertyhub/internal/testing/guard"
)

// upstreamDefaults point configuration at an address nothing listens on, so a
// test that forgets its own backend fails fast.
var upstreamDefaults = map[string]string{
	"UPSTREAM_URL": "http://127.0.0.1:0",
	"REDIS_ADDR":   "127.0.0.1:0",
}

func init() {
	for key, value := range upstreamDefaults {
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}
