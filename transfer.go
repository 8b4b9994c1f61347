package raft

import "fmt"

// TransferLeadership asks this Leader to hand off to target once target's
// log is fully caught up (spec §4.11). Passing target == 0 cancels any
// transfer already in progress. done, if non-nil, is invoked at most once
// with the outcome: from inside a later Tick/Receive call, or from a later
// TransferLeadership call that cancels or replaces this transfer. A
// transfer still pending when the node is stopped is never completed.
func (n *Node) TransferLeadership(target NodeID, done func(error)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	const op = "TransferLeadership"
	if n.stopped {
		return newError(StatusStopped, op, nil)
	}
	if n.role != Leader {
		return newError(StatusNotLeader, op, nil)
	}
	if target == 0 {
		n.abortTransfer(fmt.Errorf("transfer cancelled"))
		return nil
	}
	if target == n.id {
		return newError(StatusInvalidArg, op, fmt.Errorf("cannot transfer to self"))
	}
	n.abortTransfer(fmt.Errorf("superseded by a transfer to node %d", target))
	n.transfer = &pendingTransfer{
		target:    target,
		timeoutMs: int(n.cfg.ElectionTimeoutMax.Milliseconds()),
		done:      done,
	}
	n.tryCompleteTransfer()
	return nil
}

// tryCompleteTransfer sends TimeoutNow once the target's match_index has
// caught up to this node's last_index, so the new leader starts with a log
// at least as up to date as the old one (spec §4.11).
func (n *Node) tryCompleteTransfer() {
	t := n.transfer
	if t == nil || t.sentTimeout {
		return
	}
	if n.matchIndex[t.target] < n.log.LastIndex() {
		return
	}
	t.sentTimeout = true
	n.sendTo(t.target, Message{Tag: TagTimeoutNow, From: n.id, Payload: TimeoutNowArgs{Term: n.currentTerm, LeaderID: n.id}})
}

// checkTransferProgress re-evaluates a pending transfer after replication
// progress towards its target.
func (n *Node) checkTransferProgress(from NodeID) {
	if n.transfer != nil && n.transfer.target == from {
		n.tryCompleteTransfer()
	}
}

// advanceTransferClock aborts a transfer that hasn't completed within one
// election-timeout window, returning leadership fully to this node (spec
// §4.11: a transfer must not block the cluster indefinitely).
func (n *Node) advanceTransferClock(elapsedMs int) {
	t := n.transfer
	if t == nil {
		return
	}
	t.elapsedMs += elapsedMs
	if t.elapsedMs > t.timeoutMs {
		n.abortTransfer(fmt.Errorf("leadership transfer to node %d timed out", t.target))
	}
}

func (n *Node) abortTransfer(err error) {
	t := n.transfer
	if t == nil {
		return
	}
	n.transfer = nil
	if t.done != nil {
		t.done(err)
	}
}

// handleTimeoutNow is the transfer target's side: start a real election
// immediately, bypassing both the normal election timer and PreVote, since
// the current leader explicitly authorized this campaign (spec §4.11).
func (n *Node) handleTimeoutNow(args TimeoutNowArgs) {
	if args.Term < n.currentTerm {
		return
	}
	if args.Term > n.currentTerm {
		if err := n.stepDown(args.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
			return
		}
	}
	if n.role == Leader {
		return
	}
	n.becomeCandidate()
}
