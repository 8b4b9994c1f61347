package raft

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/first-principles-cs/consensus/store"
)

// CreateSnapshot asks Config.SnapshotFn for state covering everything up
// to upTo, persists it, and compacts the log prefix it replaces (spec
// §4.7). upTo must not exceed last_applied.
func (n *Node) CreateSnapshot(upTo uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	const op = "CreateSnapshot"
	if n.stopped {
		return newError(StatusStopped, op, nil)
	}
	if n.cfg.SnapshotFn == nil {
		return newError(StatusInvalidArg, op, fmt.Errorf("no snapshot callback configured"))
	}
	if upTo > n.lastApplied {
		return newError(StatusInvalidArg, op, fmt.Errorf("upTo %d exceeds last_applied %d", upTo, n.lastApplied))
	}
	return n.createSnapshot(upTo)
}

func (n *Node) createSnapshot(upTo uint64) error {
	if upTo <= n.log.BaseIndex() {
		return nil
	}
	snapshotID := uuid.NewString()
	state, err := n.cfg.SnapshotFn(upTo)
	if err != nil {
		return newError(StatusIoError, "CreateSnapshot", err)
	}
	term := n.log.TermAt(upTo)
	if err := n.snapFile.Save(upTo, term, state); err != nil {
		return newError(StatusIoError, "CreateSnapshot", err)
	}
	if err := n.logFile.CompactPrefix(upTo, term, n.cfg.SyncWrites); err != nil {
		return newError(StatusIoError, "CreateSnapshot", err)
	}
	n.log.TruncateBefore(upTo + 1)
	n.metrics.logEntries.Set(float64(n.log.Count()))
	n.logger.Info().Str("snapshot_id", snapshotID).Uint64("up_to", upTo).Uint64("term", term).Msg("snapshot created")
	return nil
}

// maybeAutoCompact implements spec §4.7's auto-compaction trigger: once
// the number of applied entries since the last snapshot's coverage exceeds
// AutoCompactionThreshold, compact silently. A no-op with no
// SnapshotFn configured or before anything has been applied.
func (n *Node) maybeAutoCompact() {
	if n.cfg.SnapshotFn == nil || n.lastApplied == 0 {
		return
	}
	if n.lastApplied-n.log.BaseIndex() <= n.cfg.AutoCompactionThreshold {
		return
	}
	if err := n.createSnapshot(n.lastApplied); err != nil {
		n.logger.Error().Err(err).Msg("auto-compaction failed")
	}
}

// sendInstallSnapshot transfers the current (and only) on-disk snapshot in
// a single chunk; this core never splits one across multiple RPCs (spec
// §4.7: "simplified implementations may use a single chunk").
func (n *Node) sendInstallSnapshot(peer NodeID) {
	lastIndex, lastTerm, state, err := n.snapFile.Load()
	if err != nil {
		n.logger.Error().Err(err).Uint64("peer", uint64(peer)).Msg("cannot install-snapshot: no local snapshot")
		return
	}
	args := InstallSnapshotArgs{
		Term:      n.currentTerm,
		LeaderID:  n.id,
		LastIndex: lastIndex,
		LastTerm:  lastTerm,
		Offset:    0,
		Data:      state,
		Done:      true,
	}
	n.sendTo(peer, Message{Tag: TagInstallSnapshot, From: n.id, Payload: args})
}

func (n *Node) handleInstallSnapshot(args InstallSnapshotArgs) InstallSnapshotReply {
	if args.Term < n.currentTerm {
		return InstallSnapshotReply{Term: n.currentTerm, Success: false}
	}
	if args.Term > n.currentTerm {
		if err := n.stepDown(args.Term); err != nil {
			n.logger.Error().Err(err).Msg("step down failed")
			return InstallSnapshotReply{Term: n.currentTerm, Success: false}
		}
	}
	n.timers.resetElection()
	n.leaderID = args.LeaderID
	if n.role != Follower {
		n.role = Follower
		n.votesGranted = nil
	}
	n.abortTransfer(nil)

	if args.LastIndex <= n.log.BaseIndex() {
		// Already covered by a snapshot at least as new.
		return InstallSnapshotReply{Term: n.currentTerm, Success: true}
	}
	if err := n.snapFile.Save(args.LastIndex, args.LastTerm, args.Data); err != nil {
		n.logger.Error().Err(err).Msg("save received snapshot failed")
		return InstallSnapshotReply{Term: n.currentTerm, Success: false}
	}
	if err := n.logFile.Rebase(args.LastIndex, args.LastTerm, n.cfg.SyncWrites); err != nil {
		n.logger.Error().Err(err).Msg("rebase log file failed")
		return InstallSnapshotReply{Term: n.currentTerm, Success: false}
	}
	n.log.Reset(args.LastIndex, args.LastTerm)
	n.commitIndex = args.LastIndex
	n.lastApplied = args.LastIndex
	n.metrics.logEntries.Set(0)

	if n.cfg.RestoreFn != nil {
		if err := n.cfg.RestoreFn(args.Data); err != nil {
			n.logger.Error().Err(err).Msg("restore callback failed for received snapshot")
			return InstallSnapshotReply{Term: n.currentTerm, Success: false}
		}
	}
	return InstallSnapshotReply{Term: n.currentTerm, Success: true}
}

func (n *Node) handleInstallSnapshotReply(from NodeID, reply InstallSnapshotReply) {
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
		n.sendInstallSnapshot(from)
		return
	}
	lastIndex, _, _, err := n.snapFile.Load()
	if err != nil {
		if err != store.ErrNotFound {
			n.logger.Error().Err(err).Msg("reload snapshot after install ack failed")
		}
		return
	}
	if lastIndex > n.matchIndex[from] {
		n.matchIndex[from] = lastIndex
	}
	n.nextIndex[from] = lastIndex + 1
	n.advanceCommit()
	n.checkTransferProgress(from)
}
