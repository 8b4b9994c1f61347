package raft

import (
	"encoding/binary"
	"fmt"
)

// clusterConfig tracks the set of voting node-ids plus at most one
// pending add|remove change (spec §3/§4.9). It replaces the teacher's
// process-wide peer-set globals with a field owned exclusively by one
// Node, and replaces teacher's "any number of in-flight peer changes"
// with the spec's single-pending-change gate.
type clusterConfig struct {
	voters       map[NodeID]bool
	pending      *ConfigChange
	pendingIndex uint64
}

func newClusterConfig(peers []NodeID) *clusterConfig {
	voters := make(map[NodeID]bool, len(peers))
	for _, p := range peers {
		voters[p] = true
	}
	return &clusterConfig{voters: voters}
}

// Voters returns the committed (applied) voting set, independent of any
// pending change.
func (c *clusterConfig) Voters() []NodeID {
	out := make([]NodeID, 0, len(c.voters))
	for id := range c.voters {
		out = append(out, id)
	}
	return out
}

func (c *clusterConfig) IsVoter(id NodeID) bool {
	return c.voters[id]
}

// EffectiveVoters is the set used for quorum computation: a pending Add
// counts immediately; a pending Remove keeps counting until its entry is
// applied (spec §4.9's resolved convention).
func (c *clusterConfig) EffectiveVoters() map[NodeID]bool {
	out := make(map[NodeID]bool, len(c.voters)+1)
	for id := range c.voters {
		out[id] = true
	}
	if c.pending != nil && c.pending.Kind == AddNode {
		out[c.pending.Node] = true
	}
	return out
}

func (c *clusterConfig) QuorumSize() int {
	return len(c.EffectiveVoters())/2 + 1
}

// BeginChange records a newly-appended (not yet applied) Config entry.
// Rejects a second pending change (spec §4.9 step 4).
func (c *clusterConfig) BeginChange(index uint64, change ConfigChange) error {
	if c.pending != nil {
		return fmt.Errorf("membership: change already pending at index %d", c.pendingIndex)
	}
	c.pending = &change
	c.pendingIndex = index
	return nil
}

// Apply mutates the committed voter set once the Config entry at index
// is applied, and clears the pending slot (spec §4.9 step 3). The voter
// set changes whatever index is; only the clearing of the pending slot
// depends on index matching the pending change's index (a follower that
// never recorded a pending change still updates its voters here).
func (c *clusterConfig) Apply(index uint64, change ConfigChange) {
	switch change.Kind {
	case AddNode:
		c.voters[change.Node] = true
	case RemoveNode:
		delete(c.voters, change.Node)
	}
	if c.pending != nil && c.pendingIndex == index {
		c.pending = nil
		c.pendingIndex = 0
	}
}

// Abandon clears a pending change without applying it -- used when the
// entry that proposed it is truncated away (e.g. it lost an election
// before being committed).
func (c *clusterConfig) Abandon(index uint64) {
	if c.pending != nil && c.pendingIndex == index {
		c.pending = nil
		c.pendingIndex = 0
	}
}

func (c *clusterConfig) Pending() (*ConfigChange, uint64) {
	return c.pending, c.pendingIndex
}

// EncodeConfigChange/DecodeConfigChange serialize a ConfigChange into a
// Config entry's Data field: kind(1 byte) ++ node(8 bytes).
func EncodeConfigChange(c ConfigChange) []byte {
	b := make([]byte, 9)
	b[0] = byte(c.Kind)
	binary.LittleEndian.PutUint64(b[1:9], uint64(c.Node))
	return b
}

func DecodeConfigChange(b []byte) (ConfigChange, error) {
	if len(b) != 9 {
		return ConfigChange{}, fmt.Errorf("membership: config change payload is %d bytes, want 9: %w", len(b), ErrCorruption)
	}
	return ConfigChange{
		Kind: ChangeKind(b[0]),
		Node: NodeID(binary.LittleEndian.Uint64(b[1:9])),
	}, nil
}

// AddVoter proposes adding id to the cluster. Leader-only (spec §4.9).
func (n *Node) AddVoter(id NodeID) (uint64, error) {
	return n.proposeConfigChange(ConfigChange{Kind: AddNode, Node: id})
}

// RemoveVoter proposes removing id from the cluster. Leader-only. A
// leader that removes itself steps down once the entry is applied
// (spec §4.9); callers are encouraged to TransferLeadership first.
func (n *Node) RemoveVoter(id NodeID) (uint64, error) {
	return n.proposeConfigChange(ConfigChange{Kind: RemoveNode, Node: id})
}

func (n *Node) proposeConfigChange(change ConfigChange) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	const op = "ProposeConfigChange"
	if n.stopped {
		return 0, newError(StatusStopped, op, nil)
	}
	if n.role != Leader {
		return 0, newError(StatusNotLeader, op, nil)
	}
	if p, _ := n.cluster.Pending(); p != nil {
		return 0, newError(StatusInvalidArg, op, fmt.Errorf("a membership change is already pending"))
	}
	index := n.log.LastIndex() + 1
	if err := n.cluster.BeginChange(index, change); err != nil {
		return 0, newError(StatusInvalidArg, op, err)
	}
	if _, err := n.appendLocal(EntryConfig, EncodeConfigChange(change)); err != nil {
		n.cluster.Abandon(index)
		return 0, err
	}
	n.replicateToAll()
	return index, nil
}

// ClusterConfig reports the committed voter set and any pending change,
// for hosting-service introspection (not part of spec.md's operation
// list, but a read-only addition every membership-capable example in the
// corpus exposes in some form).
func (n *Node) ClusterConfig() (voters []NodeID, pending *ConfigChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, _ := n.cluster.Pending()
	if p != nil {
		cp := *p
		pending = &cp
	}
	return n.cluster.Voters(), pending
}
