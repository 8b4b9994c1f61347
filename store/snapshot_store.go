package store

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"path/filepath"
)

const (
	snapMagic      uint32 = 0x52534E50 // "RSNP"
	snapVersion    uint16 = 1
	snapHeaderSize int    = 32 // magic(4) version(2) crc32(4) pad(2) last_index(8) last_term(8) state_len(4)
)

// SnapshotFile persists the single most recent snapshot to
// raft_snapshot.dat: a header plus the opaque state bytes (spec §4.1/§4.7).
type SnapshotFile struct {
	path string
}

func OpenSnapshotFile(dir string) *SnapshotFile {
	return &SnapshotFile{path: filepath.Join(dir, "raft_snapshot.dat")}
}

// Load returns (lastIndex, lastTerm, stateBytes). ErrNotFound if no
// snapshot has ever been written.
func (s *SnapshotFile) Load() (lastIndex, lastTerm uint64, state []byte, err error) {
	b, err := readFileAll(s.path)
	if err == ErrNotFound {
		return 0, 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, 0, nil, err
	}
	if len(b) < snapHeaderSize {
		return 0, 0, nil, fmt.Errorf("%w: snapshot file is %d bytes, want at least %d", ErrIO, len(b), snapHeaderSize)
	}

	magic := binary.LittleEndian.Uint32(b[0:4])
	version := binary.LittleEndian.Uint16(b[4:6])
	crc := binary.LittleEndian.Uint32(b[6:10])
	// b[10:12] reserved pad.
	lastIndex = binary.LittleEndian.Uint64(b[12:20])
	lastTerm = binary.LittleEndian.Uint64(b[20:28])
	stateLen := binary.LittleEndian.Uint32(b[28:32])

	if magic != snapMagic {
		return 0, 0, nil, fmt.Errorf("%w: bad snapshot magic %#x", ErrCorruption, magic)
	}
	if version != snapVersion {
		return 0, 0, nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorruption, version)
	}
	if len(b) < snapHeaderSize+int(stateLen) {
		return 0, 0, nil, fmt.Errorf("%w: declared state_len %d exceeds file size", ErrCorruption, stateLen)
	}
	want := crc32Snap(lastIndex, lastTerm)
	if crc != want {
		return 0, 0, nil, fmt.Errorf("%w: crc mismatch (got %#x want %#x)", ErrCorruption, crc, want)
	}
	state = append([]byte(nil), b[snapHeaderSize:snapHeaderSize+int(stateLen)]...)
	return lastIndex, lastTerm, state, nil
}

// Save atomically writes a new snapshot: temp file, fsync, rename.
func (s *SnapshotFile) Save(lastIndex, lastTerm uint64, state []byte) error {
	b := make([]byte, snapHeaderSize+len(state))
	binary.LittleEndian.PutUint32(b[0:4], snapMagic)
	binary.LittleEndian.PutUint16(b[4:6], snapVersion)
	binary.LittleEndian.PutUint32(b[6:10], crc32Snap(lastIndex, lastTerm))
	binary.LittleEndian.PutUint64(b[12:20], lastIndex)
	binary.LittleEndian.PutUint64(b[20:28], lastTerm)
	binary.LittleEndian.PutUint32(b[28:32], uint32(len(state)))
	copy(b[snapHeaderSize:], state)
	return writeFileAtomic(s.path, b, true)
}

func crc32Snap(lastIndex, lastTerm uint64) uint32 {
	var tmp [16]byte
	binary.LittleEndian.PutUint64(tmp[0:8], lastIndex)
	binary.LittleEndian.PutUint64(tmp[8:16], lastTerm)
	return crc32.ChecksumIEEE(tmp[:])
}
