package paxos

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no dispatcher, retransmitter, or heartbeat goroutine
// outlives its test — every Engine built in this package's tests is
// expected to have Stop called on it before the test returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
