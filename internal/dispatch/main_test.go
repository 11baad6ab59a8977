package dispatch

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the retry/backoff wrapper never leaves a timer or
// in-flight vendor call goroutine running past the test that started it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
