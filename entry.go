package raft

// NodeID identifies a replica. The wire/durable formats fix it at 64 bits
// so that the state file's vote record stays a constant 28 bytes; hosting
// transports are free to map a NodeID to whatever addressing scheme they
// use (host:port, a service-discovery key, ...).
type NodeID uint64

// Role is the set of states a replica can be in.
type Role uint8

const (
	Follower Role = iota
	PreCandidate
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case PreCandidate:
		return "PreCandidate"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// EntryKind distinguishes opaque client commands from the two kinds of
// entries the core itself injects into the log.
type EntryKind uint8

const (
	EntryCommand EntryKind = iota
	EntryConfig
	EntryNoop
)

func (k EntryKind) String() string {
	switch k {
	case EntryCommand:
		return "Command"
	case EntryConfig:
		return "Config"
	case EntryNoop:
		return "Noop"
	default:
		return "Unknown"
	}
}

// Entry is one record in the replicated log. Index is 1-based and
// monotonic within a log; it is immutable once durably replicated to a
// majority.
type Entry struct {
	Term  uint64
	Index uint64
	Kind  EntryKind
	Data  []byte
}

// ChangeKind distinguishes the two membership operations a Config entry
// can encode.
type ChangeKind uint8

const (
	AddNode ChangeKind = iota
	RemoveNode
)

func (k ChangeKind) String() string {
	if k == AddNode {
		return "AddNode"
	}
	return "RemoveNode"
}

// ConfigChange is the payload of an EntryConfig entry (spec §4.9).
type ConfigChange struct {
	Kind ChangeKind
	Node NodeID
}
