package store

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"path/filepath"
)

const (
	stateMagic   uint32 = 0x52414654 // "RAFT"
	stateVersion uint16 = 1
	stateSize    int    = 28 // magic(4) version(2) crc32(4) term(8) voted_for(8) pad(2)
)

// StateFile persists current_term/voted_for to raft_state.dat. Every
// write is a temp-file + rename, with an optional fsync before the
// rename (spec §4.1).
type StateFile struct {
	path string
}

func OpenStateFile(dir string) *StateFile {
	return &StateFile{path: filepath.Join(dir, "raft_state.dat")}
}

// Load reads (currentTerm, votedFor) from disk. A missing file is not an
// error -- it is a fresh node and both values are zero (spec §4.8 step
// 2). A short file is ErrIO; a magic/version/CRC mismatch is
// ErrCorruption.
func (s *StateFile) Load() (currentTerm uint64, votedFor uint64, err error) {
	b, err := readFileAll(s.path)
	if err == ErrNotFound {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	if len(b) < stateSize {
		return 0, 0, fmt.Errorf("%w: state file is %d bytes, want %d", ErrIO, len(b), stateSize)
	}

	magic := binary.LittleEndian.Uint32(b[0:4])
	version := binary.LittleEndian.Uint16(b[4:6])
	crc := binary.LittleEndian.Uint32(b[6:10])
	term := binary.LittleEndian.Uint64(b[10:18])
	voted := binary.LittleEndian.Uint64(b[18:26])
	// b[26:28] is reserved pad.

	if magic != stateMagic {
		return 0, 0, fmt.Errorf("%w: bad magic %#x", ErrCorruption, magic)
	}
	if version != stateVersion {
		return 0, 0, fmt.Errorf("%w: unsupported version %d", ErrCorruption, version)
	}
	want := crc32Of(term, voted)
	if crc != want {
		return 0, 0, fmt.Errorf("%w: crc mismatch (got %#x want %#x)", ErrCorruption, crc, want)
	}
	return term, voted, nil
}

// Save durably persists (currentTerm, votedFor). When sync is true the
// write is fsync'd before being made visible, matching the contract that
// a safety-observing reply must not be sent until this returns (spec §3).
func (s *StateFile) Save(currentTerm, votedFor uint64, sync bool) error {
	b := make([]byte, stateSize)
	binary.LittleEndian.PutUint32(b[0:4], stateMagic)
	binary.LittleEndian.PutUint16(b[4:6], stateVersion)
	binary.LittleEndian.PutUint32(b[6:10], crc32Of(currentTerm, votedFor))
	binary.LittleEndian.PutUint64(b[10:18], currentTerm)
	binary.LittleEndian.PutUint64(b[18:26], votedFor)
	// b[26:28] stays zero (pad).
	return writeFileAtomic(s.path, b, sync)
}

func crc32Of(term, voted uint64) uint32 {
	var tmp [16]byte
	binary.LittleEndian.PutUint64(tmp[0:8], term)
	binary.LittleEndian.PutUint64(tmp[8:16], voted)
	return crc32.ChecksumIEEE(tmp[:])
}
