package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterConfigEffectiveVotersIncludesPendingAdd(t *testing.T) {
	c := newClusterConfig([]NodeID{1, 2, 3})
	require.NoError(t, c.BeginChange(10, ConfigChange{Kind: AddNode, Node: 4}))
	voters := c.EffectiveVoters()
	require.True(t, voters[4], "a pending add must count towards quorum before it commits")
	require.Equal(t, 3, c.QuorumSize(), "quorum over {1,2,3,4} is 3")
}

func TestClusterConfigEffectiveVotersKeepsPendingRemoveUntilApplied(t *testing.T) {
	c := newClusterConfig([]NodeID{1, 2, 3})
	require.NoError(t, c.BeginChange(10, ConfigChange{Kind: RemoveNode, Node: 3}))
	voters := c.EffectiveVoters()
	require.True(t, voters[3], "a pending remove must keep counting until its entry applies")

	c.Apply(10, ConfigChange{Kind: RemoveNode, Node: 3})
	require.False(t, c.EffectiveVoters()[3])
}

func TestClusterConfigRejectsSecondPendingChange(t *testing.T) {
	c := newClusterConfig([]NodeID{1, 2, 3})
	require.NoError(t, c.BeginChange(10, ConfigChange{Kind: AddNode, Node: 4}))
	err := c.BeginChange(11, ConfigChange{Kind: AddNode, Node: 5})
	require.Error(t, err)
}

func TestClusterConfigAbandonClearsOnlyMatchingIndex(t *testing.T) {
	c := newClusterConfig([]NodeID{1, 2, 3})
	require.NoError(t, c.BeginChange(10, ConfigChange{Kind: AddNode, Node: 4}))
	c.Abandon(99)
	_, idx := c.Pending()
	require.Equal(t, uint64(10), idx, "Abandon at a mismatched index must be a no-op")

	c.Abandon(10)
	p, _ := c.Pending()
	require.Nil(t, p)
}

func TestConfigChangeEncodeDecodeRoundTrip(t *testing.T) {
	c := ConfigChange{Kind: RemoveNode, Node: 7}
	got, err := DecodeConfigChange(EncodeConfigChange(c))
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestDecodeConfigChangeRejectsWrongLength(t *testing.T) {
	_, err := DecodeConfigChange([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorruption)
}

func TestAddVoterRejectsWhileChangeAlreadyPending(t *testing.T) {
	ids := []NodeID{1, 2, 3}
	tc := newTestCluster(t, ids, 17)
	defer tc.stop()
	var leader *Node
	tc.run(10, 5000, func() bool {
		leader = tc.leader()
		return leader != nil
	})

	_, err := leader.AddVoter(4)
	require.NoError(t, err)
	_, err = leader.AddVoter(5)
	require.Error(t, err, "a second pending membership change must be rejected")
}

func TestAddVoterRejectsOnNonLeader(t *testing.T) {
	ids := []NodeID{1, 2, 3}
	tc := newTestCluster(t, ids, 17)
	defer tc.stop()
	var leader *Node
	tc.run(10, 5000, func() bool {
		leader = tc.leader()
		return leader != nil
	})
	var follower *Node
	for _, id := range ids {
		if id != leader.ID() {
			follower = tc.nodes[id]
			break
		}
	}
	_, err := follower.AddVoter(4)
	require.ErrorIs(t, err, ErrNotLeader)
}
