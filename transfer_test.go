package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferLeadershipHandsOffToCaughtUpTarget(t *testing.T) {
	ids := []NodeID{1, 2, 3}
	tc := newTestCluster(t, ids, 21)
	defer tc.stop()

	var leader *Node
	tc.run(10, 5000, func() bool {
		leader = tc.leader()
		return leader != nil
	})
	oldLeaderID := leader.ID()
	var target NodeID
	for _, id := range ids {
		if id != oldLeaderID {
			target = id
			break
		}
	}

	// Let the target fully catch up before asking for a transfer, so
	// tryCompleteTransfer's match_index gate is already satisfied.
	_, err := leader.Propose([]byte("warm up"))
	require.NoError(t, err)
	tc.run(10, 3000, func() bool { return tc.nodes[target].CommitIndex() >= leader.CommitIndex() })

	var transferErr error
	done := false
	require.NoError(t, leader.TransferLeadership(target, func(err error) {
		transferErr, done = err, true
	}))

	tc.run(10, 5000, func() bool {
		return tc.nodes[target].Role() == Leader
	})
	require.Equal(t, Leader, tc.nodes[target].Role())

	tc.run(10, 2000, func() bool { return done })
	require.NoError(t, transferErr)
}

func TestTransferLeadershipRejectsSelf(t *testing.T) {
	ids := []NodeID{1, 2, 3}
	tc := newTestCluster(t, ids, 21)
	defer tc.stop()
	var leader *Node
	tc.run(10, 5000, func() bool {
		leader = tc.leader()
		return leader != nil
	})
	err := leader.TransferLeadership(leader.ID(), nil)
	require.Error(t, err)
}

func TestTransferLeadershipTimesOutIfTargetNeverCatchesUp(t *testing.T) {
	ids := []NodeID{1, 2, 3}
	tc := newTestCluster(t, ids, 21)
	defer tc.stop()
	var leader *Node
	tc.run(10, 5000, func() bool {
		leader = tc.leader()
		return leader != nil
	})
	oldLeaderID := leader.ID()
	var target NodeID
	for _, id := range ids {
		if id != oldLeaderID {
			target = id
			break
		}
	}

	// Isolate the target so it can never catch up, then force its
	// match_index arbitrarily far behind and start a transfer to it.
	tc.transport[oldLeaderID].SetPartition(func(_, to NodeID) bool { return to == target })
	_, err := leader.Propose([]byte("keeps target behind"))
	require.NoError(t, err)

	var transferErr error
	done := false
	require.NoError(t, leader.TransferLeadership(target, func(err error) {
		transferErr, done = err, true
	}))

	tc.run(10, 2000, func() bool { return done })
	require.Error(t, transferErr)
	require.Equal(t, Leader, leader.Role())
}
