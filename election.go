package raft

// allPeers returns every voting node-id other than this one, including a
// pending-add target (which must start receiving RPCs before its entry is
// even committed, spec §4.9) but excluding a pending-remove target only
// once its removal has actually applied.
func (n *Node) allPeers() []NodeID {
	set := n.cluster.EffectiveVoters()
	out := make([]NodeID, 0, len(set))
	for id := range set {
		if id != n.id {
			out = append(out, id)
		}
	}
	return out
}

func (n *Node) broadcast(msg Message) {
	for _, p := range n.allPeers() {
		n.sendTo(p, msg)
	}
}

// upToDate implements spec §4.5's tie-break: a candidate log is at least as
// up to date as ours iff its last term is strictly newer, or equal with an
// index at least as large.
func (n *Node) upToDate(lastLogTerm, lastLogIndex uint64) bool {
	myTerm, myIndex := n.log.LastTerm(), n.log.LastIndex()
	if lastLogTerm != myTerm {
		return lastLogTerm > myTerm
	}
	return lastLogIndex >= myIndex
}

// quorumGranted reports whether votesGranted already covers a majority of
// the effective voting set -- checked after every vote/pre-vote received,
// including the self-vote recorded when the round starts (so a one-node
// cluster wins immediately, per spec §4.4).
func (n *Node) quorumGranted() bool {
	voters := n.cluster.EffectiveVoters()
	count := 0
	for id := range voters {
		if n.votesGranted[id] {
			count++
		}
	}
	return count >= n.cluster.QuorumSize()
}

func (n *Node) startElection() {
	if n.role == Leader {
		return
	}
	if n.cfg.PreVoteEnabled {
		n.becomePreCandidate()
	} else {
		n.becomeCandidate()
	}
}

// becomePreCandidate starts a PreVote round at term+1 without touching
// current_term or voted_for (spec §4.4/§4.5): a partitioned node can keep
// doing this forever without disturbing a healthy cluster.
func (n *Node) becomePreCandidate() {
	n.role = PreCandidate
	// An election timeout fired, so whatever leader we used to believe in
	// is no longer trustworthy -- without this, handlePreVote's "no known
	// leader" grant condition would never become true again once a single
	// leader had ever sent a heartbeat, and the cluster could never elect
	// a replacement.
	n.leaderID = 0
	n.votesGranted = map[NodeID]bool{n.id: true}
	n.timers.resetElection()
	n.logEvent("starting prevote round")

	args := PreVoteArgs{
		Term:         n.currentTerm + 1,
		CandidateID:  n.id,
		LastLogIndex: n.log.LastIndex(),
		LastLogTerm:  n.log.LastTerm(),
	}
	n.broadcast(Message{Tag: TagPreVote, From: n.id, Payload: args})
	if n.quorumGranted() {
		n.becomeCandidate()
	}
}

// becomeCandidate bumps current_term, votes for self, persists both, and
// starts a real RequestVote round (spec §4.4).
func (n *Node) becomeCandidate() {
	n.role = Candidate
	n.leaderID = 0
	n.currentTerm++
	n.votedFor = n.id
	if err := n.persistState(); err != nil {
		n.logger.Error().Err(err).Msg("persist state failed entering candidate; retreating to follower")
		n.role = Follower
		return
	}
	n.votesGranted = map[NodeID]bool{n.id: true}
	n.timers.resetElection()
	n.logEvent("starting election")

	args := RequestVoteArgs{
		Term:         n.currentTerm,
		CandidateID:  n.id,
		LastLogIndex: n.log.LastIndex(),
		LastLogTerm:  n.log.LastTerm(),
	}
	n.broadcast(Message{Tag: TagRequestVote, From: n.id, Payload: args})
	if n.quorumGranted() {
		n.becomeLeader()
	}
}

// becomeLeader resets per-peer replication bookkeeping and immediately
// appends a no-op entry so that prior-term entries become committable
// through the current-term commit rule (spec §4.5/§4.6).
func (n *Node) becomeLeader() {
	n.role = Leader
	n.leaderID = n.id
	n.votesGranted = nil
	last := n.log.LastIndex()
	n.nextIndex = make(map[NodeID]uint64)
	n.matchIndex = make(map[NodeID]uint64)
	for _, p := range n.allPeers() {
		n.nextIndex[p] = last + 1
		n.matchIndex[p] = 0
	}
	n.timers.resetHeartbeat()
	n.logEvent("became leader")

	if _, err := n.appendLocal(EntryNoop, nil); err != nil {
		n.logger.Error().Err(err).Msg("failed to append leader no-op entry")
		return
	}
	n.replicateToAll()
}

func (n *Node) handlePreVote(args PreVoteArgs) PreVoteReply {
	if args.Term < n.currentTerm {
		return PreVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	grant := n.leaderID == 0 && args.Term >= n.currentTerm+1 && n.upToDate(args.LastLogTerm, args.LastLogIndex)
	return PreVoteReply{Term: n.currentTerm, VoteGranted: grant}
}

func (n *Node) handlePreVoteReply(from NodeID, reply PreVoteReply) {
	if n.role != PreCandidate {
		return
	}
	if reply.Term > n.currentTerm {
		if err := n.stepDown(reply.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
		}
		return
	}
	if !reply.VoteGranted {
		return
	}
	n.votesGranted[from] = true
	if n.quorumGranted() {
		n.becomeCandidate()
	}
}

func (n *Node) handleRequestVote(args RequestVoteArgs) RequestVoteReply {
	if args.Term > n.currentTerm {
		if err := n.stepDown(args.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
			return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
		}
	}
	if args.Term < n.currentTerm {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	grant := (n.votedFor == 0 || n.votedFor == args.CandidateID) && n.upToDate(args.LastLogTerm, args.LastLogIndex)
	if grant {
		n.votedFor = args.CandidateID
		if err := n.persistState(); err != nil {
			n.logger.Error().Err(err).Msg("persist vote failed")
			return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
		}
		n.timers.resetElection()
	}
	return RequestVoteReply{Term: n.currentTerm, VoteGranted: grant}
}

func (n *Node) handleRequestVoteReply(from NodeID, reply RequestVoteReply) {
	if n.role != Candidate {
		return
	}
	if reply.Term > n.currentTerm {
		if err := n.stepDown(reply.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
		}
		return
	}
	if reply.Term < n.currentTerm || !reply.VoteGranted {
		return
	}
	n.votesGranted[from] = true
	if n.quorumGranted() {
		n.becomeLeader()
	}
}
