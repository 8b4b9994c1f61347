package raft

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/first-principles-cs/consensus/store"
)

// pendingRead is an in-flight ReadIndex request awaiting heartbeat
// confirmation from a majority (spec §4.10).
type pendingRead struct {
	readIndex uint64
	acks      map[NodeID]bool
	done      func(index uint64, err error)
}

// pendingTransfer tracks a leadership transfer in progress (spec §4.11).
type pendingTransfer struct {
	target      NodeID
	elapsedMs   int
	timeoutMs   int
	sentTimeout bool
	done        func(err error)
}

// Node is a single Raft replica. All of its state is owned exclusively by
// the goroutine that calls into it: Tick, Receive, Propose and every other
// exported method take the same mutex, and there are no background
// goroutines (spec §5). A hosting process supplies the clock (via Tick),
// the network (via Transport/Receive) and the state machine (via
// Config.ApplyFn).
type Node struct {
	mu sync.Mutex

	id      NodeID
	cfg     *Config
	logger  zerolog.Logger
	metrics *metricsSet

	role        Role
	currentTerm uint64
	votedFor    NodeID // 0 means none
	leaderID    NodeID // 0 means unknown

	log         *Log
	commitIndex uint64
	lastApplied uint64

	cluster *clusterConfig

	// Leader-only bookkeeping. Reset on every transition into Leader;
	// meaningless (and not consulted) otherwise.
	nextIndex  map[NodeID]uint64
	matchIndex map[NodeID]uint64

	// PreCandidate/Candidate-only bookkeeping.
	votesGranted map[NodeID]bool

	timers *timers

	stateFile *store.StateFile
	logFile   *store.LogFile
	snapFile  *store.SnapshotFile

	pendingReads []*pendingRead
	transfer     *pendingTransfer

	// clockMs is a monotonically increasing virtual clock, advanced only
	// by Tick, used to measure commit latency without a wall-clock
	// dependency (spec §5 forbids one).
	clockMs int64
	// appendTimestamps records, for entries appended while this node was
	// Leader, the clockMs at append time; consumed (and deleted) the
	// moment the index commits.
	appendTimestamps map[uint64]int64

	started bool
	stopped bool
}

// Open constructs a Node from cfg, replaying any durable state/log/snapshot
// files under cfg.DataDir (spec §4.8 recovery procedure). It does not start
// the election timer; call Start for that.
func Open(cfg *Config, opts ...Option) (*Node, error) {
	const op = "Open"
	cfg.apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		id:      cfg.NodeID,
		cfg:     cfg,
		logger:  zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Uint64("node_id", uint64(cfg.NodeID)).Logger(),
		metrics: newMetrics(),
		cluster: newClusterConfig(cfg.Peers),
		timers:  newTimers(cfg),
	}

	if err := n.recover(); err != nil {
		status := StatusIoError
		if errors.Is(err, store.ErrCorruption) {
			status = StatusCorruption
		}
		return nil, newError(status, op, err)
	}

	n.logger = n.logger.With().Uint64("term", n.currentTerm).Str("role", n.role.String()).Logger()
	return n, nil
}

// Start arms the election timer and makes the node eligible to campaign.
// It does not itself drive time forward; the caller must call Tick.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cfg.SendFn == nil {
		return newError(StatusInvalidArg, "Start", fmt.Errorf("Config.SendFn must be set"))
	}
	n.timers.resetElection()
	n.started = true
	n.logEvent("started")
	return nil
}

// Stop marks the node permanently unusable. Every subsequent Propose,
// ReadIndex, TransferLeadership, AddVoter, RemoveVoter and CreateSnapshot
// call returns ErrStopped, and Tick and Receive do nothing. Durable files
// remain on disk; a new Node can Open them.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return nil
	}
	n.stopped = true
	var firstErr error
	if err := n.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	n.logEvent("stopped")
	return firstErr
}

func (n *Node) logEvent(msg string) {
	n.logger.Debug().Uint64("term", n.currentTerm).Str("role", n.role.String()).Msg(msg)
}

// ID returns this replica's node-id.
func (n *Node) ID() NodeID { return n.id }

func (n *Node) Role() Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

func (n *Node) Term() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm
}

// Leader reports the node-id this replica currently believes is leader, or
// 0 if unknown.
func (n *Node) Leader() NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leaderID
}

func (n *Node) CommitIndex() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.commitIndex
}

func (n *Node) LastApplied() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastApplied
}

// Tick advances the node's virtual clock by elapsedMs and fires whichever
// timers expired: an election timeout triggers a (pre-)vote campaign; a
// heartbeat timeout, while Leader, triggers an AppendEntries/heartbeat
// round to every peer (spec §4.3/§4.4/§4.6).
func (n *Node) Tick(elapsedMs int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped || !n.started {
		return
	}
	n.clockMs += int64(elapsedMs)
	electionExpired, heartbeatExpired := n.timers.advance(elapsedMs)

	if n.transfer != nil {
		n.advanceTransferClock(elapsedMs)
	}

	if n.role == Leader {
		if heartbeatExpired {
			n.timers.resetHeartbeat()
			n.replicateToAll()
		}
		return
	}
	if electionExpired {
		n.startElection()
	}
}

// Receive decodes data (produced by EncodeMessage on the sender's side)
// and dispatches it to the matching handler. from is the transport's
// observed sender, independent of whatever the payload itself claims.
func (n *Node) Receive(from NodeID, data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		n.logger.Warn().Err(err).Msg("dropping undecodable message")
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped || !n.started {
		return
	}
	switch p := msg.Payload.(type) {
	case PreVoteArgs:
		reply := n.handlePreVote(p)
		n.sendTo(from, Message{Tag: TagPreVoteResp, From: n.id, Payload: reply})
	case PreVoteReply:
		n.handlePreVoteReply(from, p)
	case RequestVoteArgs:
		reply := n.handleRequestVote(p)
		n.sendTo(from, Message{Tag: TagRequestVoteResp, From: n.id, Payload: reply})
	case RequestVoteReply:
		n.handleRequestVoteReply(from, p)
	case AppendEntriesArgs:
		reply := n.handleAppendEntries(p)
		n.sendTo(from, Message{Tag: TagAppendEntriesResp, From: n.id, Payload: reply})
	case AppendEntriesReply:
		n.handleAppendEntriesReply(from, p)
	case InstallSnapshotArgs:
		reply := n.handleInstallSnapshot(p)
		n.sendTo(from, Message{Tag: TagInstallSnapshotResp, From: n.id, Payload: reply})
	case InstallSnapshotReply:
		n.handleInstallSnapshotReply(from, p)
	case TimeoutNowArgs:
		n.handleTimeoutNow(p)
	default:
		n.logger.Warn().Str("tag", msg.Tag.String()).Msg("unhandled message payload")
	}
}

func (n *Node) sendTo(peer NodeID, msg Message) {
	if peer == n.id || n.cfg.SendFn == nil {
		return
	}
	encoded, err := EncodeMessage(msg)
	if err != nil {
		n.logger.Error().Err(err).Str("tag", msg.Tag.String()).Msg("encode failed")
		return
	}
	n.cfg.SendFn(peer, encoded)
}

// Propose appends data as a Command entry if this node is Leader, returning
// the index it was assigned. It does not wait for commitment (spec §4.1's
// "Propose returns the assigned index without waiting for commit").
func (n *Node) Propose(data []byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	const op = "Propose"
	if n.stopped {
		return 0, newError(StatusStopped, op, nil)
	}
	if n.role != Leader {
		return 0, newError(StatusNotLeader, op, nil)
	}
	index, err := n.appendLocal(EntryCommand, data)
	if err != nil {
		return 0, err
	}
	n.replicateToAll()
	return index, nil
}

// appendLocal appends one entry to the leader's own log at currentTerm and
// durably persists it before returning (spec invariant: a leader never
// acknowledges or replicates an entry it hasn't itself made durable). It
// also re-evaluates commit_index immediately: with no peers (or none that
// have replied yet), the leader's own match already forms a majority when
// quorum_size is 1, and advanceCommit is the only path that notices.
func (n *Node) appendLocal(kind EntryKind, data []byte) (uint64, error) {
	index := n.log.LastIndex() + 1
	if err := n.logFile.Append(n.currentTerm, index, uint8(kind), data, n.cfg.SyncWrites); err != nil {
		return 0, newError(StatusIoError, "appendLocal", err)
	}
	n.log.Append(n.currentTerm, kind, data)
	n.metrics.logEntries.Set(float64(n.log.Count()))
	if n.appendTimestamps == nil {
		n.appendTimestamps = make(map[uint64]int64)
	}
	n.appendTimestamps[index] = n.clockMs
	n.advanceCommit()
	return index, nil
}

// persistState durably saves (currentTerm, votedFor). Every call site that
// mutates either field must call this before any reply referencing the new
// term/vote is sent (spec §4.1/§4.8).
func (n *Node) persistState() error {
	if err := n.stateFile.Save(n.currentTerm, uint64(n.votedFor), n.cfg.SyncWrites); err != nil {
		return newError(StatusIoError, "persistState", err)
	}
	n.metrics.term.Set(float64(n.currentTerm))
	return nil
}

// stepDown transitions to Follower at term newTerm, clearing leader-only
// and candidate-only bookkeeping. It is the single chokepoint every
// "discovered a higher term" / "lost an election" / "voluntarily resigned"
// path routes through (spec §4.4).
func (n *Node) stepDown(newTerm uint64) error {
	wasLeader := n.role == Leader
	if newTerm > n.currentTerm {
		n.currentTerm = newTerm
		n.votedFor = 0
		if err := n.persistState(); err != nil {
			return err
		}
	}
	n.role = Follower
	n.nextIndex = nil
	n.matchIndex = nil
	n.votesGranted = nil
	n.timers.resetElection()
	if wasLeader {
		n.leaderID = 0
		if n.transfer != nil && n.transfer.sentTimeout {
			// The target was told to campaign; losing leadership to a
			// higher term is the handoff completing.
			n.abortTransfer(nil)
		} else {
			n.abortTransfer(fmt.Errorf("no longer leader"))
		}
		n.failPendingReads(ErrNotLeader)
		n.metrics.leaderChanges.Inc()
	}
	return nil
}
