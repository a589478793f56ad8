package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

const testModeEnv = "PROPERTYHUB_TEST_MODE"

var testMode atomic.Pointer[bool]

func readTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(&on)
	return on
}

// InTestMode reports whether the process runs under tests and must skip
// starting servers.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return readTestMode()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	readTestMode()
}
