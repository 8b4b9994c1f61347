package raft

// advanceCommit implements spec §4.6's Leader commit rule: for each index
// above the current commit_index, count this node plus every peer whose
// match_index has reached it; if that count is a strict majority of the
// effective voting set AND the entry was proposed in the current term,
// advance commit_index to it. The current-term restriction is Leader
// Completeness: an older-term entry only commits transitively, once a
// current-term entry above it reaches majority.
func (n *Node) advanceCommit() {
	if n.role != Leader {
		return
	}
	last := n.log.LastIndex()
	quorum := n.cluster.QuorumSize()
	newCommit := n.commitIndex

	for idx := n.commitIndex + 1; idx <= last; idx++ {
		e, ok := n.log.Get(idx)
		if !ok || e.Term != n.currentTerm {
			continue
		}
		count := 1 // self
		for peer := range n.cluster.EffectiveVoters() {
			if peer == n.id {
				continue
			}
			if n.matchIndex[peer] >= idx {
				count++
			}
		}
		if count >= quorum {
			newCommit = idx
		}
	}
	if newCommit == n.commitIndex {
		return
	}
	for idx := n.commitIndex + 1; idx <= newCommit; idx++ {
		if ts, ok := n.appendTimestamps[idx]; ok {
			delete(n.appendTimestamps, idx)
			n.metrics.commitLatency.Observe(float64(n.clockMs-ts) / 1000)
		}
	}
	n.commitIndex = newCommit
	n.applyCommitted()
}

// applyCommitted is the apply pump (spec §4.6): while last_applied <
// commit_index, invoke the apply callback (for Command entries) or the
// internal config-change handler (for Config entries) in index order,
// exactly once per index.
func (n *Node) applyCommitted() {
	for n.lastApplied < n.commitIndex {
		idx := n.lastApplied + 1
		e, ok := n.log.Get(idx)
		if !ok {
			break
		}
		switch e.Kind {
		case EntryConfig:
			if change, err := DecodeConfigChange(e.Data); err == nil {
				n.cluster.Apply(idx, change)
				if change.Kind == RemoveNode && change.Node == n.id && n.role == Leader {
					if err := n.stepDown(n.currentTerm); err != nil {
						n.logger.Error().Err(err).Msg("step down after self-removal failed")
					}
				}
			} else {
				n.logger.Error().Err(err).Uint64("index", idx).Msg("corrupt config entry during apply")
			}
		case EntryCommand:
			if n.cfg.ApplyFn != nil {
				n.cfg.ApplyFn(*e)
			}
		case EntryNoop:
			// Carries no state; its only purpose is the term bump it lets
			// the commit rule use to pull older entries across.
		}
		n.lastApplied = idx
		n.metrics.applyTotal.Inc()
		n.maybeAutoCompact()
	}
}
