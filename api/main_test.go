package api

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the api package.
// This catches server goroutines that outlive graceful shutdown.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Lingering keep-alive connections park in the poller
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
