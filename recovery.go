package raft

import (
	"fmt"

	"github.com/first-principles-cs/consensus/store"
)

// recover implements the spec §4.8 startup sequence: open the snapshot
// file (if any), open the log file and replay every record after the
// snapshot's coverage, then open the state file. A fresh data directory
// (no files yet) produces an empty Follower at term 0 with no vote cast.
func (n *Node) recover() error {
	snapFile := store.OpenSnapshotFile(n.cfg.DataDir)
	n.snapFile = snapFile

	snapIndex, snapTerm, snapState, err := snapFile.Load()
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("load snapshot: %w", err)
	}
	hasSnapshot := err == nil
	if hasSnapshot && n.cfg.RestoreFn != nil {
		if err := n.cfg.RestoreFn(snapState); err != nil {
			return fmt.Errorf("restore snapshot state: %w", err)
		}
	}

	logFile, err := store.OpenLogFile(n.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	n.logFile = logFile

	baseIndex, baseTerm := uint64(0), uint64(0)
	if hasSnapshot {
		baseIndex, baseTerm = snapIndex, snapTerm
	}
	fileBaseIndex, fileBaseTerm, _ := logFile.Info()
	if hasSnapshot && fileBaseIndex < baseIndex {
		// The log file predates the snapshot (it hasn't been rebased to
		// match yet, e.g. a crash between Save and Rebase): trust the
		// snapshot's coverage and skip anything at or before it below.
	} else {
		baseIndex, baseTerm = fileBaseIndex, fileBaseTerm
	}

	n.log = NewLog(baseIndex, baseTerm)
	if err := logFile.Iterate(func(r store.LogRecord) error {
		if r.Index <= baseIndex {
			return nil
		}
		n.log.AppendRaw(Entry{Term: r.Term, Index: r.Index, Kind: EntryKind(r.Kind), Data: r.Data})
		return nil
	}); err != nil {
		return fmt.Errorf("replay log: %w", err)
	}

	n.stateFile = store.OpenStateFile(n.cfg.DataDir)
	term, voted, err := n.stateFile.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	n.currentTerm = term
	n.votedFor = NodeID(voted)

	n.role = Follower
	n.leaderID = 0
	if hasSnapshot {
		n.commitIndex = snapIndex
		n.lastApplied = snapIndex
	}
	n.metrics.logEntries.Set(float64(n.log.Count()))
	n.metrics.term.Set(float64(n.currentTerm))
	return nil
}
