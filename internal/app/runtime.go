package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes the binaries exit before opening connections.
const TestModeEnv = "MINIERP_TEST_MODE"

// InTestMode reports whether MINIERP_TEST_MODE was set to a true value when
// the process started.
var InTestMode = sync.OnceValue(func() bool {
	return testMode(os.Getenv)
})

func testMode(getenv func(string) string) bool {
	on, err := strconv.ParseBool(getenv(TestModeEnv))
	return err == nil && on
}
