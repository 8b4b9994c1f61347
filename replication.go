package raft

// getNextIndex lazily initializes replication bookkeeping for a peer that
// wasn't known when becomeLeader ran -- e.g. one added via AddVoter while
// already Leader.
func (n *Node) getNextIndex(peer NodeID) uint64 {
	if idx, ok := n.nextIndex[peer]; ok {
		return idx
	}
	idx := n.log.LastIndex() + 1
	n.nextIndex[peer] = idx
	n.matchIndex[peer] = 0
	return idx
}

// replicateToAll sends every peer an AppendEntries (or InstallSnapshot, if
// it has fallen behind the log's virtual prefix) carrying whatever it is
// still missing. Called after every local append and on every heartbeat
// tick (spec §4.6).
func (n *Node) replicateToAll() {
	if n.role != Leader {
		return
	}
	for _, p := range n.allPeers() {
		n.sendAppendEntries(p)
	}
}

func (n *Node) sendAppendEntries(peer NodeID) {
	next := n.getNextIndex(peer)
	if next <= n.log.BaseIndex() {
		n.sendInstallSnapshot(peer)
		return
	}
	prev := next - 1
	args := AppendEntriesArgs{
		Term:         n.currentTerm,
		LeaderID:     n.id,
		PrevLogIndex: prev,
		PrevLogTerm:  n.log.TermAt(prev),
		LeaderCommit: n.commitIndex,
		Entries:      n.log.Slice(next, n.cfg.MaxEntriesPerAppend),
	}
	n.sendTo(peer, Message{Tag: TagAppendEntries, From: n.id, Payload: args})
}

// handleAppendEntries is the follower side of spec §4.6: step down on a
// newer term, reject a stale one, run the consistency check, resolve any
// conflict by truncating, append what's new, and advance commit_index.
func (n *Node) handleAppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	if args.Term > n.currentTerm {
		if err := n.stepDown(args.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
			return AppendEntriesReply{Term: n.currentTerm, Success: false, MatchIndex: n.log.LastIndex()}
		}
	}
	if args.Term < n.currentTerm {
		return AppendEntriesReply{Term: n.currentTerm, Success: false, MatchIndex: n.log.LastIndex()}
	}

	n.timers.resetElection()
	n.leaderID = args.LeaderID
	if n.role != Follower {
		n.role = Follower
		n.votesGranted = nil
	}
	n.abortTransfer(nil)

	if args.PrevLogIndex > 0 {
		if n.log.TermAt(args.PrevLogIndex) != args.PrevLogTerm {
			return AppendEntriesReply{Term: n.currentTerm, Success: false, MatchIndex: n.log.LastIndex()}
		}
	}

	for _, e := range args.Entries {
		existing, ok := n.log.Get(e.Index)
		if ok && existing.Term != e.Term {
			if err := n.truncateLocal(e.Index - 1); err != nil {
				n.logger.Error().Err(err).Msg("truncate on conflict failed")
				return AppendEntriesReply{Term: n.currentTerm, Success: false, MatchIndex: n.log.LastIndex()}
			}
			ok = false
		}
		if !ok {
			n.log.AppendRaw(e)
			if err := n.logFile.Append(e.Term, e.Index, uint8(e.Kind), e.Data, n.cfg.SyncWrites); err != nil {
				n.logger.Error().Err(err).Msg("durable append failed")
				return AppendEntriesReply{Term: n.currentTerm, Success: false, MatchIndex: n.log.LastIndex()}
			}
		}
	}
	n.metrics.logEntries.Set(float64(n.log.Count()))

	if args.LeaderCommit > n.commitIndex {
		// Commit no further than the last entry this call carried
		// (PrevLogIndex for a bare heartbeat): any tail this follower holds
		// beyond it may come from a since-replaced leader and has not been
		// checked against the current leader's log, so it is never folded
		// into commit_index here; it is truncated the next time a
		// log-bearing AppendEntries conflicts with it.
		newCommit := args.LeaderCommit
		if lastNew := args.PrevLogIndex + uint64(len(args.Entries)); newCommit > lastNew {
			newCommit = lastNew
		}
		if newCommit > n.commitIndex {
			n.commitIndex = newCommit
			n.applyCommitted()
		}
	}
	return AppendEntriesReply{Term: n.currentTerm, Success: true, MatchIndex: n.log.LastIndex()}
}

// truncateLocal removes every in-memory and on-disk entry after index, and
// abandons a pending membership change if the entry that proposed it was
// among those discarded.
func (n *Node) truncateLocal(index uint64) error {
	n.log.TruncateAfter(index)
	if err := n.logFile.TruncateAfter(index, n.cfg.SyncWrites); err != nil {
		return err
	}
	if _, pendingIndex := n.cluster.Pending(); pendingIndex > index {
		n.cluster.Abandon(pendingIndex)
	}
	return nil
}

func (n *Node) handleAppendEntriesReply(from NodeID, reply AppendEntriesReply) {
	if n.role != Leader {
		return
	}
	if reply.Term > n.currentTerm {
		if err := n.stepDown(reply.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
		}
		return
	}
	if reply.Term < n.currentTerm {
		return
	}
	n.recordHeartbeatAck(from)

	if !reply.Success {
		next := n.getNextIndex(from)
		if next > 1 {
			next--
		}
		n.nextIndex[from] = next
		n.sendAppendEntries(from)
		return
	}
	if reply.MatchIndex > n.matchIndex[from] {
		n.matchIndex[from] = reply.MatchIndex
	}
	n.nextIndex[from] = n.matchIndex[from] + 1
	n.advanceCommit()
	n.checkTransferProgress(from)
}
