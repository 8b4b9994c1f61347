package raft

import "github.com/google/uuid"

// ReadIndex implements spec §4.10's linearizable-read protocol: record the
// current commit_index, confirm (via a heartbeat round) that a majority of
// the cluster still recognizes this node as leader at the current term,
// then invoke done once the state machine has applied at least that index.
// done is called at most once: from inside this call when the read is
// already confirmed (e.g. a single-node cluster), otherwise from inside a
// later Tick/Receive call, or with ErrNotLeader if this node steps down
// first. A read still pending when the node is stopped is never completed.
func (n *Node) ReadIndex(done func(index uint64, err error)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	const op = "ReadIndex"
	if n.stopped {
		return newError(StatusStopped, op, nil)
	}
	if n.role != Leader {
		return newError(StatusNotLeader, op, nil)
	}
	readID := uuid.NewString()
	pr := &pendingRead{
		readIndex: n.commitIndex,
		acks:      map[NodeID]bool{n.id: true},
		done:      done,
	}
	n.pendingReads = append(n.pendingReads, pr)
	n.logger.Debug().Str("read_id", readID).Uint64("read_index", pr.readIndex).Msg("read index requested")
	n.replicateToAll()
	n.pumpPendingReads()
	return nil
}

// recordHeartbeatAck credits peer with acknowledging this node's
// leadership at the current term -- any AppendEntries/InstallSnapshot
// reply it sent back, success or not, proves it is alive and has not seen
// a higher term.
func (n *Node) recordHeartbeatAck(peer NodeID) {
	for _, pr := range n.pendingReads {
		pr.acks[peer] = true
	}
	n.pumpPendingReads()
}

func (n *Node) readQuorumReached(pr *pendingRead) bool {
	count := 0
	for id := range n.cluster.EffectiveVoters() {
		if pr.acks[id] {
			count++
		}
	}
	return count >= n.cluster.QuorumSize()
}

// pumpPendingReads fires every pending read whose quorum has acked and
// whose index has since been applied, in the order they were issued.
func (n *Node) pumpPendingReads() {
	if len(n.pendingReads) == 0 {
		return
	}
	remaining := n.pendingReads[:0]
	for _, pr := range n.pendingReads {
		if !n.readQuorumReached(pr) || n.lastApplied < pr.readIndex {
			remaining = append(remaining, pr)
			continue
		}
		if pr.done != nil {
			pr.done(pr.readIndex, nil)
		}
	}
	n.pendingReads = remaining
}

// failPendingReads rejects every outstanding read with err -- called when
// this node discovers it is no longer leader, since a read confirmed under
// a stale term is not linearizable.
func (n *Node) failPendingReads(err error) {
	for _, pr := range n.pendingReads {
		if pr.done != nil {
			pr.done(0, err)
		}
	}
	n.pendingReads = nil
}
