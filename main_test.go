package raft

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that exercising Node end to end -- elections, log
// replication, snapshotting, membership changes, reads and transfers --
// never leaves a goroutine running once every Node in a test has been
// stopped, matching the package's all-synchronous, no-background-worker
// design (spec §5).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
