package raft

import "testing"

func TestLogEmptyBoundaries(t *testing.T) {
	l := NewLog(0, 0)
	if l.LastIndex() != 0 || l.LastTerm() != 0 {
		t.Fatalf("empty log: got last_index=%d last_term=%d, want 0,0", l.LastIndex(), l.LastTerm())
	}
	if l.TermAt(0) != 0 {
		t.Fatalf("term_at(0) on empty log = %d, want 0", l.TermAt(0))
	}
	if _, ok := l.Get(1); ok {
		t.Fatalf("Get(1) on empty log should report absent")
	}
}

func TestLogAppendAndGet(t *testing.T) {
	l := NewLog(0, 0)
	i1 := l.Append(1, EntryCommand, []byte("a"))
	i2 := l.Append(1, EntryCommand, []byte("b"))
	if i1 != 1 || i2 != 2 {
		t.Fatalf("got indices %d,%d want 1,2", i1, i2)
	}
	if l.LastIndex() != 2 || l.LastTerm() != 1 {
		t.Fatalf("got last_index=%d last_term=%d, want 2,1", l.LastIndex(), l.LastTerm())
	}
	e, ok := l.Get(1)
	if !ok || string(e.Data) != "a" {
		t.Fatalf("Get(1) = %v,%v", e, ok)
	}
}

func TestLogTruncateAfterIsLeaderAppendOnlySafe(t *testing.T) {
	l := NewLog(0, 0)
	l.Append(1, EntryCommand, nil)
	l.Append(1, EntryCommand, nil)
	l.Append(2, EntryCommand, nil)
	l.TruncateAfter(1)
	if l.LastIndex() != 1 {
		t.Fatalf("last_index=%d, want 1", l.LastIndex())
	}
	if l.LastTerm() != 1 {
		t.Fatalf("last_term=%d, want 1", l.LastTerm())
	}
}

func TestLogTruncateBeforeRebasesPrefix(t *testing.T) {
	l := NewLog(0, 0)
	l.Append(1, EntryCommand, nil) // index 1
	l.Append(1, EntryCommand, nil) // index 2
	l.Append(2, EntryCommand, nil) // index 3
	l.TruncateBefore(3)
	if l.BaseIndex() != 2 || l.BaseTerm() != 1 {
		t.Fatalf("base=(%d,%d), want (2,1)", l.BaseIndex(), l.BaseTerm())
	}
	if l.Count() != 1 {
		t.Fatalf("count=%d, want 1", l.Count())
	}
	if _, ok := l.Get(2); ok {
		t.Fatalf("Get(2) should be gone after truncate_before(3)")
	}
}

func TestLogSliceCapsAtMaxCount(t *testing.T) {
	l := NewLog(0, 0)
	for i := 0; i < 5; i++ {
		l.Append(1, EntryCommand, nil)
	}
	s := l.Slice(1, 2)
	if len(s) != 2 || s[0].Index != 1 || s[1].Index != 2 {
		t.Fatalf("Slice(1,2) = %+v", s)
	}
	all := l.Slice(1, 0)
	if len(all) != 5 {
		t.Fatalf("Slice(1,0) len=%d, want 5", len(all))
	}
}

func TestLogResetForInstallSnapshot(t *testing.T) {
	l := NewLog(0, 0)
	l.Append(1, EntryCommand, nil)
	l.Reset(10, 3)
	if l.BaseIndex() != 10 || l.BaseTerm() != 3 || l.Count() != 0 {
		t.Fatalf("after Reset: base=(%d,%d) count=%d", l.BaseIndex(), l.BaseTerm(), l.Count())
	}
	if l.TermAt(10) != 3 {
		t.Fatalf("term_at(10)=%d, want 3", l.TermAt(10))
	}
}
