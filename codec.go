package raft

import (
	"encoding/binary"
	"fmt"
)

// Wire encoding is little-endian and bounds-checked: every decoder checks
// a length against the remaining buffer before reading it (spec §4.12).
// This is the boundary where Node.Receive and sendTo convert between the
// Message sum type and the []byte Transport actually carries.

func putUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putUint8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) uint64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, fmt.Errorf("codec: short read decoding uint64: %w", ErrCorruption)
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) uint32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, fmt.Errorf("codec: short read decoding uint32: %w", ErrCorruption)
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) uint8() (uint8, error) {
	if d.remaining() < 1 {
		return 0, fmt.Errorf("codec: short read decoding uint8: %w", ErrCorruption)
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if d.remaining() < int(n) {
		return nil, fmt.Errorf("codec: declared length %d exceeds remaining %d: %w", n, d.remaining(), ErrCorruption)
	}
	b := make([]byte, n)
	copy(b, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	return b, nil
}

func putEntry(buf []byte, e Entry) []byte {
	buf = putUint64(buf, e.Term)
	buf = putUint64(buf, e.Index)
	buf = putUint8(buf, uint8(e.Kind))
	buf = putBytes(buf, e.Data)
	return buf
}

func (d *decoder) entry() (Entry, error) {
	var e Entry
	var err error
	if e.Term, err = d.uint64(); err != nil {
		return e, err
	}
	if e.Index, err = d.uint64(); err != nil {
		return e, err
	}
	kind, err := d.uint8()
	if err != nil {
		return e, err
	}
	e.Kind = EntryKind(kind)
	if e.Data, err = d.bytes(); err != nil {
		return e, err
	}
	return e, nil
}

// EncodeMessage serializes msg for transmission over Transport.
func EncodeMessage(msg Message) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = putUint8(buf, uint8(msg.Tag))
	buf = putUint64(buf, uint64(msg.From))

	switch p := msg.Payload.(type) {
	case RequestVoteArgs:
		buf = putUint64(buf, p.Term)
		buf = putUint64(buf, uint64(p.CandidateID))
		buf = putUint64(buf, p.LastLogIndex)
		buf = putUint64(buf, p.LastLogTerm)
	case RequestVoteReply:
		buf = putUint64(buf, p.Term)
		if p.VoteGranted {
			buf = putUint8(buf, 1)
		} else {
			buf = putUint8(buf, 0)
		}
	case PreVoteArgs:
		buf = putUint64(buf, p.Term)
		buf = putUint64(buf, uint64(p.CandidateID))
		buf = putUint64(buf, p.LastLogIndex)
		buf = putUint64(buf, p.LastLogTerm)
	case PreVoteReply:
		buf = putUint64(buf, p.Term)
		if p.VoteGranted {
			buf = putUint8(buf, 1)
		} else {
			buf = putUint8(buf, 0)
		}
	case AppendEntriesArgs:
		buf = putUint64(buf, p.Term)
		buf = putUint64(buf, uint64(p.LeaderID))
		buf = putUint64(buf, p.PrevLogIndex)
		buf = putUint64(buf, p.PrevLogTerm)
		buf = putUint64(buf, p.LeaderCommit)
		buf = putUint32(buf, uint32(len(p.Entries)))
		for _, e := range p.Entries {
			buf = putEntry(buf, e)
		}
	case AppendEntriesReply:
		buf = putUint64(buf, p.Term)
		if p.Success {
			buf = putUint8(buf, 1)
		} else {
			buf = putUint8(buf, 0)
		}
		buf = putUint64(buf, p.MatchIndex)
	case InstallSnapshotArgs:
		buf = putUint64(buf, p.Term)
		buf = putUint64(buf, uint64(p.LeaderID))
		buf = putUint64(buf, p.LastIndex)
		buf = putUint64(buf, p.LastTerm)
		buf = putUint64(buf, p.Offset)
		buf = putBytes(buf, p.Data)
		if p.Done {
			buf = putUint8(buf, 1)
		} else {
			buf = putUint8(buf, 0)
		}
	case InstallSnapshotReply:
		buf = putUint64(buf, p.Term)
		if p.Success {
			buf = putUint8(buf, 1)
		} else {
			buf = putUint8(buf, 0)
		}
	case TimeoutNowArgs:
		buf = putUint64(buf, p.Term)
		buf = putUint64(buf, uint64(p.LeaderID))
	case TimeoutNowReply:
		buf = putUint64(buf, p.Term)
	default:
		return nil, newError(StatusInvalidArg, "EncodeMessage", fmt.Errorf("unknown payload type %T", msg.Payload))
	}
	return buf, nil
}

// DecodeMessage parses bytes produced by EncodeMessage, bounds-checking
// every length before reading it. Any truncation or declared-length
// overrun is reported as ErrCorruption.
func DecodeMessage(b []byte) (Message, error) {
	d := &decoder{buf: b}
	tagByte, err := d.uint8()
	if err != nil {
		return Message{}, err
	}
	tag := Tag(tagByte)
	from64, err := d.uint64()
	if err != nil {
		return Message{}, err
	}
	from := NodeID(from64)

	switch tag {
	case TagRequestVote:
		var p RequestVoteArgs
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		cid, err := d.uint64()
		if err != nil {
			return Message{}, err
		}
		p.CandidateID = NodeID(cid)
		if p.LastLogIndex, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.LastLogTerm, err = d.uint64(); err != nil {
			return Message{}, err
		}
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagRequestVoteResp:
		var p RequestVoteReply
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		granted, err := d.uint8()
		if err != nil {
			return Message{}, err
		}
		p.VoteGranted = granted != 0
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagPreVote:
		var p PreVoteArgs
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		cid, err := d.uint64()
		if err != nil {
			return Message{}, err
		}
		p.CandidateID = NodeID(cid)
		if p.LastLogIndex, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.LastLogTerm, err = d.uint64(); err != nil {
			return Message{}, err
		}
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagPreVoteResp:
		var p PreVoteReply
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		granted, err := d.uint8()
		if err != nil {
			return Message{}, err
		}
		p.VoteGranted = granted != 0
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagAppendEntries:
		var p AppendEntriesArgs
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		lid, err := d.uint64()
		if err != nil {
			return Message{}, err
		}
		p.LeaderID = NodeID(lid)
		if p.PrevLogIndex, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.PrevLogTerm, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.LeaderCommit, err = d.uint64(); err != nil {
			return Message{}, err
		}
		n, err := d.uint32()
		if err != nil {
			return Message{}, err
		}
		if int(n) > d.remaining() {
			return Message{}, fmt.Errorf("codec: entry count %d implausible for remaining %d bytes: %w", n, d.remaining(), ErrCorruption)
		}
		entries := make([]Entry, 0, n)
		for i := uint32(0); i < n; i++ {
			e, err := d.entry()
			if err != nil {
				return Message{}, err
			}
			entries = append(entries, e)
		}
		p.Entries = entries
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagAppendEntriesResp:
		var p AppendEntriesReply
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		ok, err := d.uint8()
		if err != nil {
			return Message{}, err
		}
		p.Success = ok != 0
		if p.MatchIndex, err = d.uint64(); err != nil {
			return Message{}, err
		}
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagInstallSnapshot:
		var p InstallSnapshotArgs
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		lid, err := d.uint64()
		if err != nil {
			return Message{}, err
		}
		p.LeaderID = NodeID(lid)
		if p.LastIndex, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.LastTerm, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.Offset, err = d.uint64(); err != nil {
			return Message{}, err
		}
		if p.Data, err = d.bytes(); err != nil {
			return Message{}, err
		}
		done, err := d.uint8()
		if err != nil {
			return Message{}, err
		}
		p.Done = done != 0
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagInstallSnapshotResp:
		var p InstallSnapshotReply
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		ok, err := d.uint8()
		if err != nil {
			return Message{}, err
		}
		p.Success = ok != 0
		return Message{Tag: tag, From: from, Payload: p}, nil
	case TagTimeoutNow:
		var p TimeoutNowArgs
		if p.Term, err = d.uint64(); err != nil {
			return Message{}, err
		}
		lid, err := d.uint64()
		if err != nil {
			return Message{}, err
		}
		p.LeaderID = NodeID(lid)
		return Message{Tag: tag, From: from, Payload: p}, nil
	default:
		return Message{}, fmt.Errorf("codec: unknown tag %d: %w", tagByte, ErrCorruption)
	}
}
