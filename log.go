package raft

// Log is the in-memory, ordered sequence of Entries sitting on top of a
// virtual, compactable prefix (baseIndex, baseTerm) (spec §3/§4.2). It is
// owned exclusively by its Node; no other type ever holds a reference to
// it. Values handed out by Get are only valid until the next mutating
// call (Append, TruncateAfter, TruncateBefore, Reset).
type Log struct {
	baseIndex uint64
	baseTerm  uint64
	entries   []Entry // entries[i] has Index == baseIndex+1+i
}

// NewLog returns an empty log whose virtual prefix ends at
// (baseIndex, baseTerm) -- the point up to which a snapshot already covers
// the state.
func NewLog(baseIndex, baseTerm uint64) *Log {
	return &Log{baseIndex: baseIndex, baseTerm: baseTerm}
}

func (l *Log) BaseIndex() uint64 { return l.baseIndex }
func (l *Log) BaseTerm() uint64  { return l.baseTerm }
func (l *Log) Count() int        { return len(l.entries) }

// LastIndex is base_index + count.
func (l *Log) LastIndex() uint64 { return l.baseIndex + uint64(len(l.entries)) }

// LastTerm is the term of the newest entry, or baseTerm if the log has no
// entries past its virtual prefix.
func (l *Log) LastTerm() uint64 {
	if len(l.entries) == 0 {
		return l.baseTerm
	}
	return l.entries[len(l.entries)-1].Term
}

// TermAt returns base_term for index == base_index, the stored entry's
// term when present, or 0 (the "unknown" sentinel) otherwise.
func (l *Log) TermAt(index uint64) uint64 {
	if index == l.baseIndex {
		return l.baseTerm
	}
	if e, ok := l.Get(index); ok {
		return e.Term
	}
	return 0
}

// Get returns the entry at index, or (nil, false) if index is at or
// before the virtual prefix, or past the last stored entry. The returned
// pointer is invalidated by any subsequent mutating call.
func (l *Log) Get(index uint64) (*Entry, bool) {
	if index <= l.baseIndex || index > l.LastIndex() {
		return nil, false
	}
	i := index - l.baseIndex - 1
	return &l.entries[i], true
}

// Slice returns a copy of the entries with index in [from, last_index],
// capped at maxCount entries (0 means unbounded). Used to build
// AppendEntries payloads.
func (l *Log) Slice(from uint64, maxCount int) []Entry {
	if from > l.LastIndex() {
		return nil
	}
	if from <= l.baseIndex {
		from = l.baseIndex + 1
	}
	start := from - l.baseIndex - 1
	end := uint64(len(l.entries))
	if maxCount > 0 && start+uint64(maxCount) < end {
		end = start + uint64(maxCount)
	}
	out := make([]Entry, end-start)
	copy(out, l.entries[start:end])
	return out
}

// Append assigns the entry the next index (base_index+count+1) and stores
// it, returning the assigned index.
func (l *Log) Append(term uint64, kind EntryKind, data []byte) uint64 {
	index := l.LastIndex() + 1
	l.entries = append(l.entries, Entry{Term: term, Index: index, Kind: kind, Data: data})
	return index
}

// AppendRaw appends an already-indexed entry (used by replication and
// recovery, where term/index arrive from the wire or the log file rather
// than being freshly assigned). The caller must ensure e.Index ==
// LastIndex()+1.
func (l *Log) AppendRaw(e Entry) {
	l.entries = append(l.entries, e)
}

// TruncateAfter removes every entry with Index > index. A Leader must
// never call this with index < LastIndex() on its own log (spec
// invariant 2, leader append-only).
func (l *Log) TruncateAfter(index uint64) {
	if index >= l.LastIndex() {
		return
	}
	if index < l.baseIndex {
		index = l.baseIndex
	}
	keep := index - l.baseIndex
	l.entries = l.entries[:keep]
}

// TruncateBefore removes every entry with Index < index, re-basing the
// virtual prefix to (index-1, term-at-index-1). Used for in-memory
// compaction once a snapshot covering up to index-1 is durable.
func (l *Log) TruncateBefore(index uint64) {
	if index <= l.baseIndex+1 {
		return
	}
	last := l.LastIndex()
	if index > last+1 {
		// Compacting past everything we have: the whole log becomes the
		// virtual prefix: term is only knowable from the caller (the
		// installing snapshot's LastTerm), so callers that hit this path
		// (InstallSnapshot) set baseTerm themselves via Reset instead.
		index = last + 1
	}
	newBaseTerm := l.TermAt(index - 1)
	keepFrom := index - l.baseIndex - 1
	remaining := make([]Entry, len(l.entries)-int(keepFrom))
	copy(remaining, l.entries[keepFrom:])
	l.entries = remaining
	l.baseIndex = index - 1
	l.baseTerm = newBaseTerm
}

// Reset discards every entry and re-points the virtual prefix at
// (baseIndex, baseTerm) -- used when an InstallSnapshot RPC replaces the
// entire log (spec §4.7).
func (l *Log) Reset(baseIndex, baseTerm uint64) {
	l.entries = nil
	l.baseIndex = baseIndex
	l.baseTerm = baseTerm
}
