package raft

import (
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []Message{
		{Tag: TagRequestVote, From: 1, Payload: RequestVoteArgs{Term: 5, CandidateID: 1, LastLogIndex: 9, LastLogTerm: 4}},
		{Tag: TagRequestVoteResp, From: 2, Payload: RequestVoteReply{Term: 5, VoteGranted: true}},
		{Tag: TagPreVote, From: 1, Payload: PreVoteArgs{Term: 6, CandidateID: 1, LastLogIndex: 9, LastLogTerm: 4}},
		{Tag: TagPreVoteResp, From: 2, Payload: PreVoteReply{Term: 5, VoteGranted: false}},
		{Tag: TagAppendEntries, From: 1, Payload: AppendEntriesArgs{
			Term: 5, LeaderID: 1, PrevLogIndex: 3, PrevLogTerm: 2, LeaderCommit: 2,
			Entries: []Entry{
				{Term: 5, Index: 4, Kind: EntryCommand, Data: []byte("x")},
				{Term: 5, Index: 5, Kind: EntryConfig, Data: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}},
			},
		}},
		{Tag: TagAppendEntriesResp, From: 2, Payload: AppendEntriesReply{Term: 5, Success: true, MatchIndex: 5}},
		{Tag: TagInstallSnapshot, From: 1, Payload: InstallSnapshotArgs{
			Term: 5, LeaderID: 1, LastIndex: 10, LastTerm: 4, Offset: 0, Data: []byte("snap"), Done: true,
		}},
		{Tag: TagInstallSnapshotResp, From: 2, Payload: InstallSnapshotReply{Term: 5, Success: true}},
		{Tag: TagTimeoutNow, From: 1, Payload: TimeoutNowArgs{Term: 5, LeaderID: 1}},
	}

	for _, want := range cases {
		encoded, err := EncodeMessage(want)
		if err != nil {
			t.Fatalf("EncodeMessage(%T): %v", want.Payload, err)
		}
		got, err := DecodeMessage(encoded)
		if err != nil {
			t.Fatalf("DecodeMessage(%T): %v", want.Payload, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch for %T:\n got  %+v\n want %+v", want.Payload, got, want)
		}
	}
}

func TestDecodeMessageRejectsTruncatedInput(t *testing.T) {
	msg := Message{Tag: TagAppendEntries, From: 1, Payload: AppendEntriesArgs{
		Term: 1, LeaderID: 1, Entries: []Entry{{Term: 1, Index: 1, Data: []byte("hello")}},
	}}
	encoded, err := EncodeMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < len(encoded); n++ {
		if _, err := DecodeMessage(encoded[:n]); err == nil {
			t.Fatalf("DecodeMessage accepted a truncation at %d bytes", n)
		}
	}
}

func TestDecodeMessageRejectsUnknownTag(t *testing.T) {
	_, err := DecodeMessage([]byte{0xFF, 1, 0, 0, 0, 0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected an error decoding an unknown tag")
	}
}
