package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func singleFollower(t *testing.T) *Node {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(1, []NodeID{1, 2, 3}, dir)
	cfg.SendFn = func(NodeID, []byte) {}
	n, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return n
}

func TestHandlePreVoteRejectsWhenLeaderKnown(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	n.leaderID = 2
	reply := n.handlePreVote(PreVoteArgs{Term: n.currentTerm + 1, CandidateID: 3, LastLogIndex: 0, LastLogTerm: 0})
	n.mu.Unlock()
	if reply.VoteGranted {
		t.Fatalf("expected PreVote to be rejected while a leader is known")
	}
}

func TestHandlePreVoteGrantsAndDoesNotMutateTerm(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	termBefore := n.currentTerm
	votedBefore := n.votedFor
	reply := n.handlePreVote(PreVoteArgs{Term: n.currentTerm + 1, CandidateID: 3, LastLogIndex: 0, LastLogTerm: 0})
	termAfter := n.currentTerm
	votedAfter := n.votedFor
	n.mu.Unlock()

	if !reply.VoteGranted {
		t.Fatalf("expected PreVote to be granted on an idle follower")
	}
	if termAfter != termBefore || votedAfter != votedBefore {
		t.Fatalf("PreVote must never mutate current_term/voted_for: term %d->%d voted %d->%d",
			termBefore, termAfter, votedBefore, votedAfter)
	}
}

func TestHandlePreVoteRejectsStaleLog(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	n.log.Append(5, EntryCommand, nil)
	reply := n.handlePreVote(PreVoteArgs{Term: n.currentTerm + 1, CandidateID: 3, LastLogIndex: 0, LastLogTerm: 0})
	n.mu.Unlock()
	if reply.VoteGranted {
		t.Fatalf("expected PreVote to be rejected against a log that is behind")
	}
}

func TestHandleRequestVoteGrantsOncePerTerm(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	term := n.currentTerm + 1
	first := n.handleRequestVote(RequestVoteArgs{Term: term, CandidateID: 2, LastLogIndex: 0, LastLogTerm: 0})
	second := n.handleRequestVote(RequestVoteArgs{Term: term, CandidateID: 3, LastLogIndex: 0, LastLogTerm: 0})
	n.mu.Unlock()

	if !first.VoteGranted {
		t.Fatalf("expected first vote request at a new term to be granted")
	}
	if second.VoteGranted {
		t.Fatalf("expected a second candidate at the same term to be rejected once a vote is cast")
	}
}

func TestHandleRequestVoteStepsDownOnHigherTerm(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	n.role = Candidate
	n.currentTerm = 5
	reply := n.handleRequestVote(RequestVoteArgs{Term: 9, CandidateID: 2, LastLogIndex: 0, LastLogTerm: 0})
	role := n.role
	term := n.currentTerm
	n.mu.Unlock()

	if role != Follower {
		t.Fatalf("expected step-down to Follower, got %s", role)
	}
	if term != 9 {
		t.Fatalf("expected current_term to adopt the higher term 9, got %d", term)
	}
	if !reply.VoteGranted {
		t.Fatalf("expected the vote to be granted after stepping down to the candidate's term")
	}
}

// TestElectionTimeoutClearsStaleLeaderForPreVote guards against a liveness
// deadlock: once a follower has recorded a leader_id from a heartbeat, its
// own election timer firing must clear it, or handlePreVote's "no known
// leader" grant condition can never become true again and no replacement
// leader can ever be elected after the original one disappears.
func TestElectionTimeoutClearsStaleLeaderForPreVote(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	n.leaderID = 2
	n.startElection()
	leaderAfter := n.leaderID
	role := n.role
	n.mu.Unlock()

	require.Equal(t, NodeID(0), leaderAfter, "election timeout must clear a stale leader_id")
	require.Equal(t, PreCandidate, role)

	n.mu.Lock()
	reply := n.handlePreVote(PreVoteArgs{Term: n.currentTerm + 1, CandidateID: 3, LastLogIndex: 0, LastLogTerm: 0})
	n.mu.Unlock()
	require.True(t, reply.VoteGranted, "PreVote must be grantable again once the stale leader is cleared")
}

func TestUpToDateTieBreak(t *testing.T) {
	n := singleFollower(t)
	n.mu.Lock()
	n.log.Append(3, EntryCommand, nil)
	n.log.Append(3, EntryCommand, nil)
	ours := n.log.LastTerm()
	cases := []struct {
		term, index uint64
		want        bool
	}{
		{ours + 1, 0, true},
		{ours, n.log.LastIndex(), true},
		{ours, n.log.LastIndex() - 1, false},
		{ours - 1, n.log.LastIndex() + 10, false},
	}
	for _, c := range cases {
		if got := n.upToDate(c.term, c.index); got != c.want {
			t.Fatalf("upToDate(term=%d,index=%d) = %v, want %v", c.term, c.index, got, c.want)
		}
	}
	n.mu.Unlock()
}
