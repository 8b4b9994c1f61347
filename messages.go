package raft

// Tag identifies the concrete type of an encoded message (spec §4.12).
type Tag uint8

const (
	TagRequestVote Tag = iota + 1
	TagRequestVoteResp
	TagAppendEntries
	TagAppendEntriesResp
	TagInstallSnapshot
	TagInstallSnapshotResp
	TagPreVote
	TagPreVoteResp
	TagTimeoutNow
)

func (t Tag) String() string {
	switch t {
	case TagRequestVote:
		return "RequestVote"
	case TagRequestVoteResp:
		return "RequestVoteResp"
	case TagAppendEntries:
		return "AppendEntries"
	case TagAppendEntriesResp:
		return "AppendEntriesResp"
	case TagInstallSnapshot:
		return "InstallSnapshot"
	case TagInstallSnapshotResp:
		return "InstallSnapshotResp"
	case TagPreVote:
		return "PreVote"
	case TagPreVoteResp:
		return "PreVoteResp"
	case TagTimeoutNow:
		return "TimeoutNow"
	default:
		return "Unknown"
	}
}

// RequestVoteArgs is the RequestVote RPC (spec §4.5).
type RequestVoteArgs struct {
	Term         uint64
	CandidateID  NodeID
	LastLogIndex uint64
	LastLogTerm  uint64
}

type RequestVoteReply struct {
	Term        uint64
	VoteGranted bool
}

// PreVoteArgs/PreVoteReply never mutate the receiver's persisted term or
// vote (spec §4.5): a partitioned node that keeps incrementing its would-be
// term cannot disrupt a healthy leader.
type PreVoteArgs struct {
	Term         uint64
	CandidateID  NodeID
	LastLogIndex uint64
	LastLogTerm  uint64
}

type PreVoteReply struct {
	Term        uint64
	VoteGranted bool
}

// AppendEntriesArgs is the AppendEntries RPC (spec §4.6). Entries is empty
// for a pure heartbeat.
type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     NodeID
	PrevLogIndex uint64
	PrevLogTerm  uint64
	LeaderCommit uint64
	Entries      []Entry
}

type AppendEntriesReply struct {
	Term       uint64
	Success    bool
	MatchIndex uint64
}

// InstallSnapshotArgs is the (single-chunk) InstallSnapshot RPC (spec
// §4.7). Offset/Done are carried for wire compatibility with chunked
// senders even though this core always sends Done=true in one chunk.
type InstallSnapshotArgs struct {
	Term      uint64
	LeaderID  NodeID
	LastIndex uint64
	LastTerm  uint64
	Offset    uint64
	Data      []byte
	Done      bool
}

type InstallSnapshotReply struct {
	Term    uint64
	Success bool
}

// TimeoutNowArgs is the leader's hint to a transfer target to start an
// election immediately (spec §4.11).
type TimeoutNowArgs struct {
	Term     uint64
	LeaderID NodeID
}

type TimeoutNowReply struct {
	Term uint64
}

// Message is the sum type exchanged across Transport. Wire bytes still
// cross the transport boundary (see codec.go); Message exists so the Go
// API on either side of Transport.Send/Receive never has to juggle raw
// []byte further than the edge.
type Message struct {
	Tag     Tag
	From    NodeID
	Payload interface{}
}
