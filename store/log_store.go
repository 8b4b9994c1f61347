package store

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
)

const (
	logMagic      uint32 = 0x524C4F47 // "RLOG"
	logVersion    uint16 = 1
	logHeaderSize int64  = 22 // magic(4) version(2) base_index(8) base_term(8)
	// record fixed part: crc32(4) term(8) index(8) kind(1) cmd_len(4)
	recordFixedSize = 4 + 8 + 8 + 1 + 4
)

// LogRecord is one durable log entry as read back from disk.
type LogRecord struct {
	Term  uint64
	Index uint64
	Kind  uint8
	Data  []byte
}

// LogFile is the append-only backing store for the in-memory Log. Its
// header carries the virtual (base_index, base_term) prefix; records
// follow in index order (spec §4.1).
//
// LogFile keeps an in-memory offsets table (one entry per record) so that
// TruncateAfter and GetLog-style lookups don't need to rescan the file.
type LogFile struct {
	path      string
	f         *os.File
	baseIndex uint64
	baseTerm  uint64
	// offsets[i] is the file offset of the record_len field for the
	// entry at index baseIndex+1+i.
	offsets []int64
}

// OpenLogFile opens (creating if absent) the log file in dir, replaying
// its header and, via Iterate, every record currently on disk. It
// returns ErrCorruption at the first bad CRC/truncated record, the same
// way recovery is specified to behave (spec §4.1/§4.8).
func OpenLogFile(dir string) (*LogFile, error) {
	path := filepath.Join(dir, "raft_log.dat")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open log file: %v", ErrIO, err)
	}
	lf := &LogFile{path: path, f: f}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat log file: %v", ErrIO, err)
	}
	if fi.Size() == 0 {
		if err := lf.writeHeader(0, 0); err != nil {
			f.Close()
			return nil, err
		}
		return lf, nil
	}

	if err := lf.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := lf.scanRecords(); err != nil {
		f.Close()
		return nil, err
	}
	return lf, nil
}

func (l *LogFile) writeHeader(baseIndex, baseTerm uint64) error {
	var hdr [logHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], logMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], logVersion)
	binary.LittleEndian.PutUint64(hdr[6:14], baseIndex)
	binary.LittleEndian.PutUint64(hdr[14:22], baseTerm)
	if _, err := l.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("%w: write log header: %v", ErrIO, err)
	}
	l.baseIndex = baseIndex
	l.baseTerm = baseTerm
	l.offsets = nil
	return nil
}

func (l *LogFile) readHeader() error {
	var hdr [logHeaderSize]byte
	n, err := l.f.ReadAt(hdr[:], 0)
	if err != nil && int64(n) < logHeaderSize {
		return fmt.Errorf("%w: short read on log header: %v", ErrIO, err)
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	version := binary.LittleEndian.Uint16(hdr[4:6])
	if magic != logMagic {
		return fmt.Errorf("%w: bad log magic %#x", ErrCorruption, magic)
	}
	if version != logVersion {
		return fmt.Errorf("%w: unsupported log version %d", ErrCorruption, version)
	}
	l.baseIndex = binary.LittleEndian.Uint64(hdr[6:14])
	l.baseTerm = binary.LittleEndian.Uint64(hdr[14:22])
	return nil
}

// scanRecords walks every record from the end of the header, rebuilding
// the offsets table. It stops and returns ErrCorruption at the first bad
// CRC, per Iterate's contract.
func (l *LogFile) scanRecords() error {
	return l.Iterate(func(LogRecord) error { return nil })
}

// Iterate replays every durable record in index order, invoking fn for
// each. It stops at the first CRC failure and returns ErrCorruption
// (spec §4.1: "stops at the first CRC failure"). As a side effect it also
// rebuilds the offsets table used by Append/TruncateAfter.
func (l *LogFile) Iterate(fn func(LogRecord) error) error {
	l.offsets = l.offsets[:0]
	off := logHeaderSize
	fi, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat log file: %v", ErrIO, err)
	}
	size := fi.Size()
	expectedIndex := l.baseIndex + 1

	for off < size {
		var lenBuf [4]byte
		if _, err := l.f.ReadAt(lenBuf[:], off); err != nil {
			return fmt.Errorf("%w: short read on record length: %v", ErrIO, err)
		}
		recordLen := binary.LittleEndian.Uint32(lenBuf[:])
		if off+4+int64(recordLen) > size {
			return fmt.Errorf("%w: record length %d overruns file", ErrCorruption, recordLen)
		}
		if recordLen < recordFixedSize {
			return fmt.Errorf("%w: record length %d shorter than fixed header", ErrCorruption, recordLen)
		}
		body := make([]byte, recordLen)
		if _, err := l.f.ReadAt(body, off+4); err != nil {
			return fmt.Errorf("%w: short read on record body: %v", ErrIO, err)
		}

		crc := binary.LittleEndian.Uint32(body[0:4])
		term := binary.LittleEndian.Uint64(body[4:12])
		index := binary.LittleEndian.Uint64(body[12:20])
		kind := body[20]
		cmdLen := binary.LittleEndian.Uint32(body[21:25])
		if int(cmdLen) != len(body)-int(recordFixedSize) {
			return fmt.Errorf("%w: cmd_len %d inconsistent with record length %d", ErrCorruption, cmdLen, recordLen)
		}
		data := body[25:]

		want := crc32.ChecksumIEEE(body[4:])
		if crc != want {
			return fmt.Errorf("%w: crc mismatch at offset %d", ErrCorruption, off)
		}
		if index != expectedIndex {
			return fmt.Errorf("%w: record index %d, expected %d", ErrCorruption, index, expectedIndex)
		}

		l.offsets = append(l.offsets, off)
		if err := fn(LogRecord{Term: term, Index: index, Kind: kind, Data: append([]byte(nil), data...)}); err != nil {
			return err
		}
		off += 4 + int64(recordLen)
		expectedIndex++
	}
	return nil
}

// Info returns the header's virtual prefix plus the number of records
// currently on disk.
func (l *LogFile) Info() (baseIndex, baseTerm uint64, count int) {
	return l.baseIndex, l.baseTerm, len(l.offsets)
}

// Append writes one record at the end of the file. index must equal
// base_index+count+1 (O(1), append-only).
func (l *LogFile) Append(term, index uint64, kind uint8, data []byte, sync bool) error {
	body := make([]byte, recordFixedSize+len(data))
	binary.LittleEndian.PutUint64(body[4:12], term)
	binary.LittleEndian.PutUint64(body[12:20], index)
	body[20] = kind
	binary.LittleEndian.PutUint32(body[21:25], uint32(len(data)))
	copy(body[25:], data)
	crc := crc32.ChecksumIEEE(body[4:])
	binary.LittleEndian.PutUint32(body[0:4], crc)

	fi, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat log file: %v", ErrIO, err)
	}
	off := fi.Size()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := l.f.WriteAt(lenBuf[:], off); err != nil {
		return fmt.Errorf("%w: write record length: %v", ErrIO, err)
	}
	if _, err := l.f.WriteAt(body, off+4); err != nil {
		return fmt.Errorf("%w: write record body: %v", ErrIO, err)
	}
	if sync {
		if err := l.f.Sync(); err != nil {
			return fmt.Errorf("%w: fsync log file: %v", ErrIO, err)
		}
	}
	l.offsets = append(l.offsets, off)
	return nil
}

// TruncateAfter rewinds the file to just past the last record with
// index <= afterIndex and ftruncates, preserving the header.
func (l *LogFile) TruncateAfter(afterIndex uint64, sync bool) error {
	if afterIndex < l.baseIndex {
		afterIndex = l.baseIndex
	}
	keep := int(afterIndex - l.baseIndex)
	if keep >= len(l.offsets) {
		return nil
	}
	var newSize int64
	if keep == 0 {
		newSize = logHeaderSize
	} else {
		newSize = l.offsets[keep] // offset of the first record we're dropping
	}
	if err := l.f.Truncate(newSize); err != nil {
		return fmt.Errorf("%w: truncate log file: %v", ErrIO, err)
	}
	l.offsets = l.offsets[:keep]
	if sync {
		if err := l.f.Sync(); err != nil {
			return fmt.Errorf("%w: fsync log file: %v", ErrIO, err)
		}
	}
	return nil
}

// Rebase rewrites the header to a new (base_index, base_term) and drops
// every record, used when a snapshot install replaces the whole log.
// Local compaction, which keeps the records past the new base, uses
// CompactPrefix instead.
func (l *LogFile) Rebase(baseIndex, baseTerm uint64, sync bool) error {
	if err := l.f.Truncate(logHeaderSize); err != nil {
		return fmt.Errorf("%w: truncate log file for rebase: %v", ErrIO, err)
	}
	if err := l.writeHeader(baseIndex, baseTerm); err != nil {
		return err
	}
	if sync {
		if err := l.f.Sync(); err != nil {
			return fmt.Errorf("%w: fsync log file: %v", ErrIO, err)
		}
	}
	return nil
}

// CompactPrefix rewrites the header's base_index/base_term forward while
// keeping every record with index > newBaseIndex, physically removing
// the compacted prefix bytes by rewriting the file. Used by local
// snapshot creation (spec §4.7), as opposed to Rebase's full discard.
func (l *LogFile) CompactPrefix(newBaseIndex, newBaseTerm uint64, sync bool) error {
	if newBaseIndex <= l.baseIndex {
		return nil
	}

	type rec struct {
		term, index uint64
		kind        uint8
		data        []byte
	}
	var kept []rec
	if err := l.Iterate(func(r LogRecord) error {
		if r.Index > newBaseIndex {
			kept = append(kept, rec{r.Term, r.Index, r.Kind, r.Data})
		}
		return nil
	}); err != nil {
		return err
	}

	if err := l.f.Truncate(logHeaderSize); err != nil {
		return fmt.Errorf("%w: truncate log file for compaction: %v", ErrIO, err)
	}
	if err := l.writeHeader(newBaseIndex, newBaseTerm); err != nil {
		return err
	}
	for _, r := range kept {
		if err := l.Append(r.term, r.index, r.kind, r.data, false); err != nil {
			return err
		}
	}
	if sync {
		if err := l.f.Sync(); err != nil {
			return fmt.Errorf("%w: fsync log file: %v", ErrIO, err)
		}
	}
	return nil
}

func (l *LogFile) Close() error {
	return l.f.Close()
}
